package api

import (
	"log/slog"

	"github.com/JaimeStill/quill/internal/modifications"
	"github.com/JaimeStill/quill/pkg/lifecycle"
)

// Domain holds the domain systems that comprise the API. The same
// modification system serves both the HTTP module and the IPC listener.
type Domain struct {
	Modifications modifications.System
	Records       *modifications.Repository

	logger *slog.Logger
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) *Domain {
	records := modifications.NewRepository(
		runtime.Database,
		runtime.Logger,
	)

	system := modifications.New(
		runtime.Provider,
		records,
		runtime.Logger,
		runtime.Pagination,
	)

	return &Domain{
		Modifications: system,
		Records:       records,
		logger:        runtime.Logger,
	}
}

// Start registers domain startup work, currently record index creation.
// Index creation is best-effort; queries still work unindexed.
func (d *Domain) Start(lc *lifecycle.Coordinator) {
	lc.OnStartup(func() {
		if err := d.Records.Init(lc.Context()); err != nil {
			d.logger.Error("record index creation failed", "error", err)
		}
	})
}
