package api

import (
	"net/http"

	"github.com/JaimeStill/quill/pkg/routes"
)

func registerRoutes(mux *http.ServeMux, domain *Domain) {
	routes.Register(
		mux,
		domain.Modifications.Handler().Routes(),
	)
}
