package filedex

import (
	"go.uber.org/zap"

	"github.com/kailas-cloud/filedex/internal/config"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs    []string
	password string

	blobDir string

	chunkMaxSize int
	chunkOverlap int

	workers     int
	maxAttempts int

	hnswM           int
	hnswEFConstruct int
	defaultTopK     int
	maxTopK         int

	providers map[string]config.ProviderConfig

	cacheEmbeddings bool

	logger *zap.Logger
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithBlobDir sets the directory for uploaded file bytes.
func WithBlobDir(dir string) Option {
	return optionFunc(func(c *clientConfig) {
		c.blobDir = dir
	})
}

// WithChunking overrides the chunk size and overlap (in runes).
func WithChunking(maxSize, overlap int) Option {
	return optionFunc(func(c *clientConfig) {
		c.chunkMaxSize = maxSize
		c.chunkOverlap = overlap
	})
}

// WithWorkers sets the pipeline worker pool size and retry budget.
func WithWorkers(workers, maxAttempts int) Option {
	return optionFunc(func(c *clientConfig) {
		c.workers = workers
		c.maxAttempts = maxAttempts
	})
}

// WithOpenAI configures the OpenAI embedding provider.
func WithOpenAI(apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.providers["openai"] = config.ProviderConfig{
			APIKey: apiKey, Model: model, MaxBatchSize: 100,
		}
	})
}

// WithAzure configures the Azure OpenAI embedding provider.
// endpoint is the Azure resource endpoint URL.
func WithAzure(apiKey, endpoint, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.providers["azure"] = config.ProviderConfig{
			APIKey: apiKey, BaseURL: endpoint, Model: model, MaxBatchSize: 100,
		}
	})
}

// WithGoogle configures the Google embedding provider.
func WithGoogle(apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.providers["google"] = config.ProviderConfig{
			APIKey: apiKey, Model: model, MaxBatchSize: 100,
		}
	})
}

// WithProvider configures a provider from a full config struct for settings
// the shorthand options don't cover (dimensions, rate limits, base URL).
func WithProvider(name string, cfg config.ProviderConfig) Option {
	return optionFunc(func(c *clientConfig) {
		c.providers[name] = cfg
	})
}

// WithEmbeddingCache caches vectors in Redis so identical text is embedded
// only once across files and re-drives.
func WithEmbeddingCache() Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheEmbeddings = true
	})
}

// WithHNSW overrides HNSW index build parameters for new collections.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithTopK sets the default and maximum number of query results.
func WithTopK(defaultTopK, maxTopK int) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultTopK = defaultTopK
		c.maxTopK = maxTopK
	})
}

// WithLogger sets the zap logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = logger
	})
}
