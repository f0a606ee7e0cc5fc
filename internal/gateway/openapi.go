package gateway

import (
	_ "embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

//go:embed openapi.json
var openapiSpec []byte

// mountDocs serves the aggregated contract and the interactive
// explorer. The document is embedded so the gateway binary is
// self-contained.
func (g *Gateway) mountDocs(router chi.Router) {
	router.Get("/openapi.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write(openapiSpec)
	})
	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs/index.html", http.StatusMovedPermanently)
	})
	router.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.json")))
}
