package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/http/handlers"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/infra"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/middleware"
)

// Options tunes the middleware stack.
type Options struct {
	AllowedOrigins  []string
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, logger infra.Logger, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(logger),
		chimw.Recoverer,
		middleware.CORS(opts.AllowedOrigins),
	)

	r.Get("/check_status", app.CheckStatus)
	r.Get("/public_key", app.PublicKey)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		r.Post("/process", app.Process)
		r.Post("/clear", app.Clear)
	})

	return r
}
