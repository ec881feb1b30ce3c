package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/linnemanlabs/go-core/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/helpdesk/internal/assistant"
	vc "github.com/linnemanlabs/helpdesk/internal/cfg"
	"github.com/linnemanlabs/helpdesk/internal/complaint"
	"github.com/linnemanlabs/helpdesk/internal/contactlink"
	linkmem "github.com/linnemanlabs/helpdesk/internal/contactlink/memstore"
	linkpg "github.com/linnemanlabs/helpdesk/internal/contactlink/pgstore"
	"github.com/linnemanlabs/helpdesk/internal/intent"
	"github.com/linnemanlabs/helpdesk/internal/knowledge"
	"github.com/linnemanlabs/helpdesk/internal/lexicon"
	"github.com/linnemanlabs/helpdesk/internal/llm/claude"
	llmopenai "github.com/linnemanlabs/helpdesk/internal/llm/openai"
	"github.com/linnemanlabs/helpdesk/internal/mastodon"
	"github.com/linnemanlabs/helpdesk/internal/notify/slack"
	"github.com/linnemanlabs/helpdesk/internal/postgres"
	"github.com/linnemanlabs/helpdesk/internal/responder"
	"github.com/linnemanlabs/helpdesk/internal/responder/redisset"
	"github.com/linnemanlabs/helpdesk/internal/retrieval"
	"github.com/linnemanlabs/helpdesk/internal/retrieval/pgindex"
	"github.com/linnemanlabs/helpdesk/internal/sentiment"
	"github.com/linnemanlabs/helpdesk/internal/supportapi"
	"github.com/linnemanlabs/helpdesk/internal/triage"
	triagemem "github.com/linnemanlabs/helpdesk/internal/triage/memstore"
	triagepg "github.com/linnemanlabs/helpdesk/internal/triage/pgstore"
)

const linkPurgeInterval = time.Hour

// components are the services built from configuration. closers run in
// reverse order on shutdown.
type components struct {
	api       *supportapi.API
	links     *contactlink.Issuer
	responder *responder.Responder
	closers   []func()
}

func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// buildComponents wires stores, providers and services. On error the
// already opened resources are released.
func buildComponents(ctx context.Context, appCfg *vc.Config, L log.Logger, reg prometheus.Registerer) (_ *components, err error) {
	c := &components{}
	defer func() {
		if err != nil {
			c.close()
		}
	}()

	outbound := &http.Client{
		Timeout:   60 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	var pool *pgxpool.Pool
	if appCfg.DatabaseURL != "" {
		pool, err = postgres.NewPool(ctx, appCfg.DatabaseURL, postgres.PoolConfig{MaxConns: int32(appCfg.DBMaxConns)}) //nolint:gosec // G115: bounded by Validate
		if err != nil {
			return nil, fmt.Errorf("postgres pool: %w", err)
		}
		c.closers = append(c.closers, pool.Close)
		postgres.SetQueryObserver(postgres.NewQueryMetrics(reg))
	}

	// Stores
	var (
		triageStore triage.Store
		linkStore   contactlink.Store
	)
	if pool != nil {
		ts, err := triagepg.New(ctx, pool)
		if err != nil {
			return nil, fmt.Errorf("triage pgstore init: %w", err)
		}
		ls, err := linkpg.New(ctx, pool)
		if err != nil {
			return nil, fmt.Errorf("contact link pgstore init: %w", err)
		}
		triageStore, linkStore = ts, ls
		L.Info(ctx, "using postgres stores")
	} else {
		triageStore, linkStore = triagemem.New(), linkmem.New()
		L.Info(ctx, "using in-memory stores (no database-url configured)")
	}

	var index retrieval.Index
	if appCfg.VectorStore == vc.VectorPostgres {
		ix, err := pgindex.New(ctx, pool)
		if err != nil {
			return nil, fmt.Errorf("pgindex init: %w", err)
		}
		index = ix
	} else {
		index = retrieval.NewMemoryIndex()
	}
	L.Info(ctx, "knowledge index ready", "backend", appCfg.VectorStore)

	// Providers
	completer, model := newCompleter(appCfg, outbound)
	if completer != nil {
		L.Info(ctx, "initialized LLM provider", "provider", appCfg.LLMProvider, "model", model)
	} else {
		L.Info(ctx, "no LLM provider, responses use templates")
	}

	var (
		retriever assistant.ContextRetriever
		ingester  supportapi.Ingester
	)
	if appCfg.OpenAIAPIKey != "" {
		embedder := llmopenai.NewEmbedder(llmopenai.Config{
			APIKey:     appCfg.OpenAIAPIKey,
			BaseURL:    appCfg.OpenAIBaseURL,
			HTTPClient: outbound,
		}, appCfg.EmbeddingModel, appCfg.EmbeddingDimensions)
		retriever = retrieval.NewRetriever(embedder, index, retrieval.Options{
			TopK:       appCfg.RAGTopK,
			Threshold:  appCfg.RAGThreshold,
			MaxContext: appCfg.RAGMaxContext,
			Timeout:    retrieval.DefaultOptions().Timeout,
		}, L.With("component", "retrieval"))
		in := knowledge.NewIngester(embedder, index, knowledge.DefaultConcurrency, L.With("component", "knowledge"))
		ingester = in
		if appCfg.KnowledgeDir != "" {
			if err := preloadKnowledge(ctx, in, os.DirFS(appCfg.KnowledgeDir), L.With("dir", appCfg.KnowledgeDir)); err != nil {
				return nil, err
			}
		}
		L.Info(ctx, "retrieval enabled", "embedding_model", appCfg.EmbeddingModel)
	} else {
		L.Info(ctx, "retrieval disabled (no openai-api-key configured)")
	}

	var (
		triageNotifier triage.Notifier
		chatNotifier   assistant.Notifier
	)
	if appCfg.SlackWebhookURL != "" {
		n := slack.New(appCfg.SlackWebhookURL)
		triageNotifier, chatNotifier = n, n
		L.Info(ctx, "notifier enabled", "type", "slack")
	}

	// Services
	lex := lexicon.Default()
	c.links = contactlink.NewIssuer(linkStore, contactlink.IssuerConfig{
		BaseURL: appCfg.FrontendURL,
		TTL:     time.Duration(appCfg.LinkTTLHours) * time.Hour,
	})
	triageSvc := triage.NewService(triageStore, complaint.New(lex), c.links, triageNotifier,
		L.With("component", "triage"), triage.NewMetrics(reg).Hooks())
	assistantSvc := assistant.NewService(assistant.Deps{
		Intent:    intent.New(lex),
		Sentiment: sentiment.New(lex),
		Retriever: retriever,
		Completer: completer,
		Notifier:  chatNotifier,
		Logger:    L.With("component", "assistant"),
		Hooks:     assistant.NewMetrics(reg).Hooks(),
	}, assistant.Config{MaxTokens: appCfg.MaxTokens, Temperature: appCfg.Temperature})

	var rsp supportapi.Responder
	if appCfg.MastodonInstanceURL != "" {
		c.responder, err = newResponder(ctx, appCfg, triageSvc, L, reg, c)
		if err != nil {
			return nil, err
		}
		rsp = c.responder
	}

	deps := supportapi.Deps{
		Classifier: assistantSvc,
		Triage:     triageSvc,
		Links:      c.links,
		Responder:  rsp,
	}
	if ingester != nil {
		deps.Ingester, deps.Index = ingester, index
	}
	c.api = supportapi.New(L, deps)
	return c, nil
}

func newCompleter(appCfg *vc.Config, hc *http.Client) (assistant.Completer, string) {
	switch appCfg.LLMProvider {
	case vc.ProviderClaude:
		return claude.New(appCfg.ClaudeAPIKey, appCfg.ClaudeModel, option.WithHTTPClient(hc)), appCfg.ClaudeModel
	case vc.ProviderOpenAI:
		return llmopenai.NewCompleter(llmopenai.Config{
			APIKey:     appCfg.OpenAIAPIKey,
			BaseURL:    appCfg.OpenAIBaseURL,
			HTTPClient: hc,
		}, appCfg.OpenAIModel), appCfg.OpenAIModel
	default:
		return nil, ""
	}
}

// preloadKnowledge ingests fsys file by file. A file that fails to parse or
// embed is logged and skipped; only a failed walk is an error.
func preloadKnowledge(ctx context.Context, in supportapi.Ingester, fsys fs.FS, L log.Logger) error {
	var loaded, failed int
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		docs, err := knowledge.LoadFile(fsys, path)
		if err != nil {
			failed++
			L.Error(ctx, err, "knowledge file skipped", "file", path)
			return nil
		}
		n, err := in.Ingest(ctx, docs)
		if err != nil {
			failed++
			L.Error(ctx, err, "knowledge file not ingested", "file", path, "documents", len(docs))
			return nil
		}
		loaded += n
		return nil
	})
	if err != nil {
		return fmt.Errorf("load knowledge dir: %w", err)
	}
	L.Info(ctx, "knowledge preloaded", "documents", loaded, "failed_files", failed)
	return nil
}

func newResponder(ctx context.Context, appCfg *vc.Config, triager responder.Triager, L log.Logger, reg prometheus.Registerer, c *components) (*responder.Responder, error) {
	client := mastodon.New(mastodon.Config{
		InstanceURL:       appCfg.MastodonInstanceURL,
		AccessToken:       appCfg.MastodonAccessToken,
		RequestsPerSecond: appCfg.MastodonRPS,
	})
	if acct, err := client.VerifyCredentials(ctx); err != nil {
		L.Warn(ctx, "mastodon credentials not verified", "instance", appCfg.MastodonInstanceURL, "error", err)
	} else {
		L.Info(ctx, "mastodon account verified", "acct", acct.Acct)
	}

	var processed responder.ProcessedSet = responder.NewMemorySet(0)
	if appCfg.RedisURL != "" {
		opts, err := redis.ParseURL(appCfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		rc := redis.NewClient(opts)
		c.closers = append(c.closers, func() { _ = rc.Close() })
		if err := rc.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		processed = redisset.New(rc, redisset.DefaultKey, 0)
		L.Info(ctx, "responder processed set in redis", "key", redisset.DefaultKey)
	}

	rcfg := responder.DefaultConfig()
	rcfg.Hashtags = appCfg.Hashtags()
	rcfg.Mentions = appCfg.MastodonMentions
	rcfg.PollInterval = time.Duration(appCfg.ResponderPollSeconds) * time.Second
	rcfg.TriageOnly = appCfg.ResponderTriageOnly

	L.Info(ctx, "responder enabled",
		"hashtags", rcfg.Hashtags,
		"mentions", rcfg.Mentions,
		"max_per_hour", appCfg.ResponderMaxPerHour,
		"min_delay_seconds", appCfg.ResponderMinDelay,
		"triage_only", rcfg.TriageOnly,
	)
	return responder.New(responder.Deps{
		Triager:   triager,
		Poster:    client,
		Source:    client,
		Throttle:  responder.NewThrottle(appCfg.ResponderMaxPerHour, time.Hour, time.Duration(appCfg.ResponderMinDelay)*time.Second),
		Processed: processed,
		Logger:    L.With("component", "responder"),
		Hooks:     responder.NewMetrics(reg).Hooks(),
	}, rcfg), nil
}

type linkPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// purgeExpiredLinks deletes expired contact links every interval until ctx
// is done.
func purgeExpiredLinks(ctx context.Context, p linkPurger, every time.Duration, L log.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := p.PurgeExpired(ctx)
			if err != nil {
				L.Error(ctx, err, "purge expired contact links")
				continue
			}
			if n > 0 {
				L.Info(ctx, "purged expired contact links", "count", n)
			}
		}
	}
}
