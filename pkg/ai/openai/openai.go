package openai

import (
	"sync"
	"time"

	"github.com/jade-labs/atomgraph/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

const defaultDimensions = 1536

// EmbeddingClient produces atom embeddings through any OpenAI-compatible
// embeddings endpoint.
//
// An EmbeddingClient should be created using NewEmbeddingClient.
type EmbeddingClient struct {
	model      string
	dimensions int
	timeout    time.Duration

	embeddingLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	Client *openai.Client
}

// NewEmbeddingClientParams configures an EmbeddingClient.
//
// Dimensions fixes the vector length; responses are truncated or zero
// padded to it. MaxConcurrentRequests bounds in-flight requests.
type NewEmbeddingClientParams struct {
	Model      string
	URL        string
	Key        string
	Dimensions int

	MaxConcurrentRequests int64
	TimeoutMin            int
}

// NewEmbeddingClient creates an EmbeddingClient.
//
// Example:
//
//	client := openai.NewEmbeddingClient(openai.NewEmbeddingClientParams{
//		Model: "text-embedding-3-small",
//		Key:   os.Getenv("OPENAI_API_KEY"),
//	})
func NewEmbeddingClient(params NewEmbeddingClientParams) *EmbeddingClient {
	dim := params.Dimensions
	if dim <= 0 {
		dim = defaultDimensions
	}
	parallel := params.MaxConcurrentRequests
	if parallel <= 0 {
		parallel = 15
	}
	timeoutMin := params.TimeoutMin
	if timeoutMin <= 0 {
		timeoutMin = 1
	}

	options := []option.RequestOption{
		option.WithAPIKey(params.Key),
	}
	if params.URL != "" {
		options = append(options, option.WithBaseURL(params.URL))
	}
	client := openai.NewClient(options...)

	return &EmbeddingClient{
		model:         params.Model,
		dimensions:    dim,
		timeout:       time.Duration(timeoutMin) * time.Minute,
		embeddingLock: semaphore.NewWeighted(parallel),
		Client:        &client,
	}
}

// GetMetrics returns the accumulated usage since creation or the last reset.
func (c *EmbeddingClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

// ResetMetrics clears the accumulated usage.
func (c *EmbeddingClient) ResetMetrics() {
	c.metricsLock.Lock()
	c.metrics = ai.ModelMetrics{}
	c.metricsLock.Unlock()
}

func (c *EmbeddingClient) modifyMetrics(m ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()

	c.metrics.InputTokens += m.InputTokens
	c.metrics.TotalTokens += m.TotalTokens
	c.metrics.DurationMs += m.DurationMs
	c.metrics.Requests++
	if c.metrics.DurationMs > 0 {
		c.metrics.TokenPerSecond = float32(float64(c.metrics.TotalTokens) * 1000 / float64(c.metrics.DurationMs))
	}
}
