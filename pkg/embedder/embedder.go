package embedder

import "context"

const (
	// DefaultModel is used when no embedding model is configured.
	DefaultModel = "text-embedding-3-small"

	// DefaultBatchSize bounds how many texts are sent per provider request.
	DefaultBatchSize = 100
)

// Client generates vector embeddings for text.
type Client interface {
	// Embed returns one embedding per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle embeds a single text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Dimensions reports the embedding width, or 0 when unknown.
	Dimensions() int

	// Close releases any provider resources.
	Close() error
}

// Config holds provider-agnostic embedding settings.
type Config struct {
	Model      string
	BaseURL    string
	Dimensions int
	BatchSize  int
}

func (c *Config) model() string {
	if c.Model == "" {
		return DefaultModel
	}
	return c.Model
}

func (c *Config) batchSize() int {
	if c.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return c.BatchSize
}

// modelDimensions maps known OpenAI embedding models to their output width.
var modelDimensions = map[string]int{
	"text-embedding-ada-002": 1536,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
}

func (c *Config) dimensions() int {
	if c.Dimensions > 0 {
		return c.Dimensions
	}
	if dims, ok := modelDimensions[c.model()]; ok {
		return dims
	}
	return 0
}
