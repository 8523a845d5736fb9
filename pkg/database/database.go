// Package database provides MongoDB connection management with lifecycle coordination.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/JaimeStill/quill/pkg/lifecycle"
)

// System manages the MongoDB client and lifecycle coordination.
type System interface {
	// Collection returns a handle to the named collection in the configured database.
	Collection(name string) *mongo.Collection
	// Ping verifies connectivity to the primary.
	Ping(ctx context.Context) error
	// Start registers startup and shutdown hooks with the lifecycle coordinator.
	Start(lc *lifecycle.Coordinator) error
}

type database struct {
	client      *mongo.Client
	db          *mongo.Database
	logger      *slog.Logger
	connTimeout time.Duration
}

// New creates a database system with the given configuration. The driver
// connects lazily; connectivity is verified by the startup ping.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	client, err := mongo.Connect(
		context.Background(),
		options.Client().ApplyURI(cfg.URL),
	)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	return &database{
		client:      client,
		db:          client.Database(cfg.Database),
		logger:      logger.With("system", "database"),
		connTimeout: cfg.ConnTimeoutDuration(),
	}, nil
}

func (d *database) Collection(name string) *mongo.Collection {
	return d.db.Collection(name)
}

func (d *database) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, d.connTimeout)
	defer cancel()
	return d.client.Ping(pingCtx, readpref.Primary())
}

func (d *database) Start(lc *lifecycle.Coordinator) error {
	d.logger.Info("starting database connection")

	lc.OnStartup(func() {
		if err := d.Ping(lc.Context()); err != nil {
			d.logger.Error("database ping failed", "error", err)
			return
		}

		d.logger.Info("database connection established")
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		d.logger.Info("closing database connection")

		disconnectCtx, cancel := context.WithTimeout(context.Background(), d.connTimeout)
		defer cancel()

		if err := d.client.Disconnect(disconnectCtx); err != nil {
			d.logger.Error("database disconnect failed", "error", err)
			return
		}

		d.logger.Info("database connection closed")
	})

	return nil
}
