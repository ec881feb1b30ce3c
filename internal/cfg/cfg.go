package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"strings"
)

// LLM providers.
const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// Vector stores.
const (
	VectorMemory   = "memory"
	VectorPostgres = "postgres"
)

// Config holds the helpdesk service configuration. It implements the
// common cfg.Registerable and cfg.Validatable interfaces.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int

	LLMProvider         string
	ClaudeAPIKey        string
	ClaudeModel         string
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	OpenAIModel         string
	EmbeddingModel      string
	EmbeddingDimensions int
	MaxTokens           int
	Temperature         float64

	DatabaseURL string
	DBMaxConns  int
	VectorStore string
	RedisURL    string

	SlackWebhookURL string

	MastodonInstanceURL  string
	MastodonAccessToken  string
	MastodonHashtags     string
	MastodonMentions     bool
	MastodonRPS          float64
	ResponderPollSeconds int
	ResponderMaxPerHour  int
	ResponderMinDelay    int
	ResponderTriageOnly  bool

	RAGTopK       int
	RAGThreshold  float64
	RAGMaxContext int
	KnowledgeDir  string

	LinkTTLHours int
	FrontendURL  string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")

	fs.StringVar(&c.LLMProvider, "llm-provider", ProviderClaude, "response generation provider (claude|openai|none)")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude provider")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-5", "Claude model to use")
	fs.StringVar(&c.OpenAIAPIKey, "openai-api-key", "", "API key for the OpenAI-compatible provider (also enables retrieval)")
	fs.StringVar(&c.OpenAIBaseURL, "openai-base-url", "", "base URL of an OpenAI-compatible API (empty = api.openai.com)")
	fs.StringVar(&c.OpenAIModel, "openai-model", "gpt-4o-mini", "chat model for the openai provider")
	fs.StringVar(&c.EmbeddingModel, "embedding-model", "text-embedding-3-small", "embedding model for retrieval")
	fs.IntVar(&c.EmbeddingDimensions, "embedding-dimensions", 1536, "embedding vector size (1..4096)")
	fs.IntVar(&c.MaxTokens, "max-tokens", 200, "maximum tokens per generated response (1..4096)")
	fs.Float64Var(&c.Temperature, "temperature", 0.7, "sampling temperature for generated responses (0..2)")

	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory stores)")
	fs.IntVar(&c.DBMaxConns, "db-max-conns", 10, "maximum PostgreSQL pool connections (1..1000)")
	fs.StringVar(&c.VectorStore, "vector-store", VectorMemory, "knowledge index backend (memory|postgres)")
	fs.StringVar(&c.RedisURL, "redis-url", "", "Redis URL for the responder processed set (empty = in-memory)")

	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for escalation notifications")

	fs.StringVar(&c.MastodonInstanceURL, "mastodon-instance-url", "", "Mastodon instance URL (empty = responder disabled)")
	fs.StringVar(&c.MastodonAccessToken, "mastodon-access-token", "", "Mastodon access token")
	fs.StringVar(&c.MastodonHashtags, "mastodon-hashtags", "Free,FreeMobile,SAVFree", "comma separated hashtags to monitor")
	fs.BoolVar(&c.MastodonMentions, "mastodon-mentions", true, "also monitor mentions of the account")
	fs.Float64Var(&c.MastodonRPS, "mastodon-rps", 1, "Mastodon API requests per second")
	fs.IntVar(&c.ResponderPollSeconds, "responder-poll-seconds", 5, "seconds between responder polls (1..3600)")
	fs.IntVar(&c.ResponderMaxPerHour, "responder-max-per-hour", 10, "maximum replies per hour (1..1000)")
	fs.IntVar(&c.ResponderMinDelay, "responder-min-delay-seconds", 30, "minimum seconds between two replies (0..3600)")
	fs.BoolVar(&c.ResponderTriageOnly, "responder-triage-only", false, "triage monitored posts without replying")

	fs.IntVar(&c.RAGTopK, "rag-top-k", 5, "knowledge documents retrieved per query (1..50)")
	fs.Float64Var(&c.RAGThreshold, "rag-threshold", 0.7, "minimum similarity of retrieved documents (0..1)")
	fs.IntVar(&c.RAGMaxContext, "rag-max-context", 2048, "maximum characters of retrieved context (1..32768)")
	fs.StringVar(&c.KnowledgeDir, "knowledge-dir", "", "directory of FAQ and documentation files loaded at startup")

	fs.IntVar(&c.LinkTTLHours, "link-ttl-hours", 24, "contact link lifetime in hours (1..720)")
	fs.StringVar(&c.FrontendURL, "frontend-url", "https://mobile.free.fr/assistance/chat", "base URL contact links point to")
}

// Hashtags returns the configured hashtags without blanks or leading '#'.
func (c *Config) Hashtags() []string {
	var out []string
	for _, h := range strings.Split(c.MastodonHashtags, ",") {
		h = strings.TrimPrefix(strings.TrimSpace(h), "#")
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	switch c.LLMProvider {
	case ProviderClaude:
		if c.ClaudeAPIKey == "" {
			errs = append(errs, errors.New("CLAUDE_API_KEY is required when LLM_PROVIDER is claude"))
		}
		if c.ClaudeModel == "" {
			errs = append(errs, errors.New("CLAUDE_MODEL is required when LLM_PROVIDER is claude"))
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required when LLM_PROVIDER is openai"))
		}
		if c.OpenAIModel == "" {
			errs = append(errs, errors.New("OPENAI_MODEL is required when LLM_PROVIDER is openai"))
		}
	case ProviderNone:
	default:
		errs = append(errs, fmt.Errorf("invalid LLM_PROVIDER %q (must be claude, openai or none)", c.LLMProvider))
	}

	if c.OpenAIBaseURL != "" && !absoluteURL(c.OpenAIBaseURL) {
		errs = append(errs, fmt.Errorf("invalid OPENAI_BASE_URL %q (must be an absolute URL)", c.OpenAIBaseURL))
	}
	if c.EmbeddingDimensions <= 0 || c.EmbeddingDimensions > 4096 {
		errs = append(errs, fmt.Errorf("invalid EMBEDDING_DIMENSIONS %d (must be 1..4096)", c.EmbeddingDimensions))
	}
	if c.MaxTokens <= 0 || c.MaxTokens > 4096 {
		errs = append(errs, fmt.Errorf("invalid MAX_TOKENS %d (must be 1..4096)", c.MaxTokens))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("invalid TEMPERATURE %g (must be 0..2)", c.Temperature))
	}

	if c.DBMaxConns <= 0 || c.DBMaxConns > 1000 {
		errs = append(errs, fmt.Errorf("invalid DB_MAX_CONNS %d (must be 1..1000)", c.DBMaxConns))
	}
	switch c.VectorStore {
	case VectorMemory:
	case VectorPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when VECTOR_STORE is postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid VECTOR_STORE %q (must be memory or postgres)", c.VectorStore))
	}

	if c.MastodonInstanceURL != "" {
		if !absoluteURL(c.MastodonInstanceURL) {
			errs = append(errs, fmt.Errorf("invalid MASTODON_INSTANCE_URL %q (must be an absolute URL)", c.MastodonInstanceURL))
		}
		if c.MastodonAccessToken == "" {
			errs = append(errs, errors.New("MASTODON_ACCESS_TOKEN is required when MASTODON_INSTANCE_URL is set"))
		}
		if len(c.Hashtags()) == 0 && !c.MastodonMentions {
			errs = append(errs, errors.New("MASTODON_HASHTAGS must not be empty when mentions are disabled"))
		}
	}
	if c.MastodonRPS <= 0 {
		errs = append(errs, fmt.Errorf("invalid MASTODON_RPS %g (must be positive)", c.MastodonRPS))
	}
	if c.ResponderPollSeconds <= 0 || c.ResponderPollSeconds > 3600 {
		errs = append(errs, fmt.Errorf("invalid RESPONDER_POLL_SECONDS %d (must be 1..3600)", c.ResponderPollSeconds))
	}
	if c.ResponderMaxPerHour <= 0 || c.ResponderMaxPerHour > 1000 {
		errs = append(errs, fmt.Errorf("invalid RESPONDER_MAX_PER_HOUR %d (must be 1..1000)", c.ResponderMaxPerHour))
	}
	if c.ResponderMinDelay < 0 || c.ResponderMinDelay > 3600 {
		errs = append(errs, fmt.Errorf("invalid RESPONDER_MIN_DELAY_SECONDS %d (must be 0..3600)", c.ResponderMinDelay))
	}

	if c.RAGTopK <= 0 || c.RAGTopK > 50 {
		errs = append(errs, fmt.Errorf("invalid RAG_TOP_K %d (must be 1..50)", c.RAGTopK))
	}
	if c.RAGThreshold < 0 || c.RAGThreshold > 1 {
		errs = append(errs, fmt.Errorf("invalid RAG_THRESHOLD %g (must be 0..1)", c.RAGThreshold))
	}
	if c.RAGMaxContext <= 0 || c.RAGMaxContext > 32768 {
		errs = append(errs, fmt.Errorf("invalid RAG_MAX_CONTEXT %d (must be 1..32768)", c.RAGMaxContext))
	}

	if c.LinkTTLHours <= 0 || c.LinkTTLHours > 720 {
		errs = append(errs, fmt.Errorf("invalid LINK_TTL_HOURS %d (must be 1..720)", c.LinkTTLHours))
	}
	if !absoluteURL(c.FrontendURL) {
		errs = append(errs, fmt.Errorf("invalid FRONTEND_URL %q (must be an absolute URL)", c.FrontendURL))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func absoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}
