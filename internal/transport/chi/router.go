package chi

import (
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kailas-cloud/mmdex/internal/metrics"
)

// RouterConfig holds router-level settings.
type RouterConfig struct {
	APIKeys []string
}

// Handler builds the console router with the standard middleware chain,
// wrapped for inbound tracing.
func (s *Server) Handler(cfg RouterConfig) http.Handler {
	r := gochi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(cfg.APIKeys))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Post("/embedding/{modality}/request", s.NormalizeEmbedding)
	r.Get("/embedding/{modality}/defaults", s.EmbeddingDefaults)

	r.Post("/sessions", s.CreateSession)
	r.Route("/sessions/{session}", func(r gochi.Router) {
		r.Use(sessionMiddleware)

		r.Get("/results", s.GetResults)
		r.Post("/search", s.Search)
		r.Post("/search/more", s.ShowMore)
		r.Post("/search/clear", s.ClearSearch)
		r.Post("/search/alert/dismiss", s.DismissSearchAlert)
		r.Delete("/tasks/{task}", s.DeleteTask)

		r.Get("/chat", s.GetChat)
		r.Post("/chat", s.SubmitChat)
		r.Delete("/chat", s.ClearChat)
		r.Post("/chat/alert/dismiss", s.DismissChatAlert)
		r.Get("/chat/messages/{message}/citations/{index}", s.SelectCitation)
	})

	return otelhttp.NewHandler(r, "mmdex.console",
		otelhttp.WithFilter(func(req *http.Request) bool {
			return req.URL.Path != "/health" && req.URL.Path != "/metrics"
		}),
	)
}
