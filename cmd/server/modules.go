package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/JaimeStill/quill/internal/api"
	"github.com/JaimeStill/quill/internal/config"
	"github.com/JaimeStill/quill/internal/infrastructure"
	"github.com/JaimeStill/quill/internal/listener"
	"github.com/JaimeStill/quill/pkg/module"
)

type Modules struct {
	API      *module.Module
	Domain   *api.Domain
	Listener *listener.Listener
}

func NewModules(infra *infrastructure.Infrastructure, cfg *config.Config) (*Modules, error) {
	runtime := api.NewRuntime(cfg, infra)
	domain := api.NewDomain(runtime)

	apiModule, err := api.NewModule(cfg, infra, domain)
	if err != nil {
		return nil, err
	}

	var ipcListener *listener.Listener
	if cfg.Listener.IsEnabled() {
		ipcListener = listener.New(&cfg.Listener, domain.Modifications, infra.Logger)
	} else {
		infra.Logger.Info("background listener disabled")
	}

	return &Modules{
		API:      apiModule,
		Domain:   domain,
		Listener: ipcListener,
	}, nil
}

func (m *Modules) Mount(router *module.Router) {
	router.Mount(m.API)
}

func buildRouter(infra *infrastructure.Infrastructure, modules *Modules) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !infra.Lifecycle.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "not ready"})
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})

	// Provider reachability is checked by default; pass
	// include_ai_service=false to skip the upstream call.
	router.HandleNative("GET /health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{
			"status":   "ok",
			"database": "ok",
			"provider": "ok",
			"model":    infra.Provider.Model(),
			"listener": "disabled",
		}
		code := http.StatusOK

		if err := infra.Database.Ping(r.Context()); err != nil {
			status["status"] = "degraded"
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		}

		includeProvider := true
		if v := r.URL.Query().Get("include_ai_service"); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				includeProvider = b
			}
		}
		if includeProvider {
			if err := infra.Provider.Health(r.Context()); err != nil {
				status["status"] = "degraded"
				status["provider"] = err.Error()
				code = http.StatusServiceUnavailable
			}
		} else {
			status["provider"] = "skipped"
		}

		if modules.Listener != nil {
			status["listener"] = string(modules.Listener.State())
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(status)
	})

	return router
}
