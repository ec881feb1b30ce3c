package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/linnemanlabs/go-core/httpmw"
	"github.com/linnemanlabs/go-core/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/helpdesk/internal/postgres"
	"github.com/linnemanlabs/helpdesk/internal/supportapi"
)

const (
	healthPath = "/-/healthy"
	readyPath  = "/-/ready"

	// maxBodyBytes fits a knowledge upload of a few dozen FAQ entries.
	maxBodyBytes = 256 << 10
)

// apiHandler bundles what the public listener needs.
type apiHandler struct {
	api         *supportapi.API
	logger      log.Logger
	metrics     func(http.Handler) http.Handler
	trustedHops int
	healthz     http.HandlerFunc
	readyz      http.HandlerFunc
}

// router registers the health endpoints and support API routes.
func (a apiHandler) router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Compress(5, "application/json"))
	r.Use(httpmw.AnnotateHTTPRoute)
	r.Use(withDBMethod)
	r.Use(httpmw.AccessLog())
	r.Use(httpmw.MaxBody(maxBodyBytes))

	r.Get(healthPath, a.healthz)
	r.Get(readyPath, a.readyz)
	a.api.RegisterRoutes(r)
	return r
}

// handler wraps the router, innermost first. The last wrapper applied sees
// the raw request first.
func (a apiHandler) handler() http.Handler {
	var h http.Handler = a.router()

	h = httpmw.WithLogger(a.logger)(h)
	h = httpmw.TraceResponseHeaders("X-Trace-Id", "X-Span-Id")(h)
	h = otelhttp.NewHandler(h, "http.server",
		otelhttp.WithFilter(traced),
		// AnnotateHTTPRoute renames the span to the route pattern.
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithPublicEndpointFn(func(*http.Request) bool { return true }),
	)
	if a.metrics != nil {
		h = a.metrics(h)
	}
	h = httpmw.ClientIPWithOptions(httpmw.ClientIPOptions{TrustedHops: a.trustedHops})(h)
	h = httpmw.RequestID("X-Request-Id")(h)
	h = httpmw.Recover(a.logger, nil)(h)
	return httpmw.SecurityHeaders(h)
}

// traced skips probes.
func traced(r *http.Request) bool {
	return r.URL.Path != healthPath && r.URL.Path != readyPath
}

// withDBMethod labels database query metrics with the request method.
func withDBMethod(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(postgres.WithHTTPMethod(r.Context(), r.Method)))
	})
}
