package postgres

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestShortenFuncName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"full path", "github.com/linnemanlabs/helpdesk/internal/triage/pgstore.(*Store).Get", "(*Store).Get"},
		{"already short", "(*Store).Get", "Get"},
		{"empty string", "", ""},
		{"no dots", "main", "main"},
		{"no slashes", "pgstore.(*Store).Get", "(*Store).Get"},
		{"single segment", "foo.Bar", "Bar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := shortenFuncName(tt.in); got != tt.want {
				t.Errorf("shortenFuncName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPackageOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"github.com/linnemanlabs/helpdesk/internal/triage/pgstore.(*Store).getOne", "github.com/linnemanlabs/helpdesk/internal/triage/pgstore"},
		{"github.com/linnemanlabs/helpdesk/internal/triage.(*Service).triage.func1", "github.com/linnemanlabs/helpdesk/internal/triage"},
		{"main.run", "main"},
		{"nodots", "nodots"},
	}
	for _, tt := range tests {
		if got := packageOf(tt.in); got != tt.want {
			t.Errorf("packageOf(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCompactSQL(t *testing.T) {
	t.Parallel()

	in := "SELECT id\n\t  FROM triaged_posts\n WHERE post_id = $1"
	if got := compactSQL(in); got != "SELECT id FROM triaged_posts WHERE post_id = $1" {
		t.Errorf("compactSQL = %q", got)
	}
}

func TestWithHTTPMethod(t *testing.T) {
	t.Parallel()

	if got := httpMethodFromContext(WithHTTPMethod(context.Background(), "POST")); got != "POST" {
		t.Errorf("httpMethodFromContext = %q, want POST", got)
	}
	if got := httpMethodFromContext(WithHTTPMethod(context.Background(), "")); got != "" {
		t.Errorf("httpMethodFromContext = %q, want empty", got)
	}
}

func TestQueryFields(t *testing.T) {
	t.Parallel()

	q := &queryInfo{sql: "UPDATE contact_links\nSET used = true", args: []any{"tok"}, caller: "(*Store).Consume", handler: "(*Issuer).Validate"}
	fields := queryFields(q, 2*time.Millisecond, pgx.TraceQueryEndData{
		CommandTag: pgconn.NewCommandTag("UPDATE 1"),
		Err:        &pgconn.PgError{Code: "23505", ConstraintName: "contact_links_pkey"},
	})

	got := map[string]any{}
	for i := 0; i+1 < len(fields); i += 2 {
		got[fields[i].(string)] = fields[i+1]
	}
	want := map[string]any{
		"db.statement":        "UPDATE contact_links SET used = true",
		"db.args":             1,
		"db.operation.name":   "UPDATE",
		"db.rows":             int64(1),
		"db.caller":           "(*Store).Consume",
		"db.handler":          "(*Issuer).Validate",
		"db.error_code":       "23505",
		"db.error_constraint": "contact_links_pkey",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v (%T), want %v", k, got[k], got[k], v)
		}
	}
}

type recordingTracer struct {
	mu         sync.Mutex
	start, end int
}

func (r *recordingTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, _ pgx.TraceQueryStartData) context.Context {
	r.mu.Lock()
	r.start++
	r.mu.Unlock()
	return ctx
}

func (r *recordingTracer) TraceQueryEnd(context.Context, *pgx.Conn, pgx.TraceQueryEndData) {
	r.mu.Lock()
	r.end++
	r.mu.Unlock()
}

// Not parallel: installs the process-wide observer.
func TestLoggingTracer_ObservesQuery(t *testing.T) {
	m := NewQueryMetrics(prometheus.NewRegistry())
	SetQueryObserver(m)
	defer SetQueryObserver(nil)

	inner := &recordingTracer{}
	tr := wrapQueryTracer(inner)

	router := chi.NewRouter()
	router.Get("/api/v1/posts/{id}", func(_ http.ResponseWriter, req *http.Request) {
		ctx := WithHTTPMethod(req.Context(), req.Method)
		ctx = tr.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
		tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("SELECT 1")})

		ctx = tr.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "SELECT 2"})
		tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: errors.New("boom")})
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/posts/42", http.NoBody))

	if inner.start != 2 || inner.end != 2 {
		t.Errorf("inner tracer calls = %d/%d, want 2/2", inner.start, inner.end)
	}
	if got := testutil.CollectAndCount(m.Duration); got != 2 {
		t.Fatalf("series = %d, want 2", got)
	}
	ok := m.Duration.WithLabelValues("GET", "/api/v1/posts/{id}", "ok")
	if got := testutil.CollectAndCount(ok.(prometheus.Collector)); got != 1 {
		t.Errorf("ok series = %d, want 1", got)
	}
}

func TestLoggingTracer_BackgroundLabels(t *testing.T) {
	var (
		mu     sync.Mutex
		labels []string
	)
	SetQueryObserver(QueryObserverFunc(func(_ context.Context, method, route, outcome string, _ time.Duration) {
		mu.Lock()
		labels = append(labels, method, route, outcome)
		mu.Unlock()
	}))
	defer SetQueryObserver(nil)

	tr := wrapQueryTracer(nil)
	ctx := tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "DELETE FROM contact_links"})
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})

	mu.Lock()
	defer mu.Unlock()
	if len(labels) != 3 || labels[0] != "NONE" || labels[1] != "none" || labels[2] != "ok" {
		t.Errorf("labels = %v", labels)
	}
}
