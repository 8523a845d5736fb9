// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/JaimeStill/quill/internal/config"
	"github.com/JaimeStill/quill/internal/infrastructure"
	"github.com/JaimeStill/quill/pkg/middleware"
	"github.com/JaimeStill/quill/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure, domain *Domain) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)

	mux := http.NewServeMux()
	registerRoutes(mux, domain)

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Infrastructure.Logger))

	return m, nil
}
