package ollama

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/jade-labs/atomgraph/pkg/ai"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

const defaultDimensions = 1024

// EmbeddingClient produces atom embeddings with a locally hosted Ollama model.
type EmbeddingClient struct {
	model      string
	dimensions int
	timeout    time.Duration

	reqLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	Client *api.Client
}

// NewEmbeddingClientParams configures an EmbeddingClient.
type NewEmbeddingClientParams struct {
	Model      string
	BaseURL    string
	ApiKey     string
	Dimensions int

	MaxConcurrentRequests int64
	TimeoutMin            int
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewEmbeddingClient connects to the Ollama server at BaseURL, or to the
// library default when BaseURL is empty.
func NewEmbeddingClient(params NewEmbeddingClientParams) (*EmbeddingClient, error) {
	var u *url.URL
	if params.BaseURL != "" {
		parsed, err := url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
		u = parsed
	}

	httpClient := http.DefaultClient
	if params.ApiKey != "" {
		httpClient = &http.Client{
			Transport: &headerTransport{
				headers: map[string]string{"Authorization": "Bearer " + params.ApiKey},
				rt:      http.DefaultTransport,
			},
		}
	}

	var cli *api.Client
	if u != nil {
		cli = api.NewClient(u, httpClient)
	} else {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, err
		}
		cli = c
	}

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

	return &EmbeddingClient{
		model:      params.Model,
		dimensions: dim,
		timeout:    time.Duration(timeoutMin) * time.Minute,
		reqLock:    semaphore.NewWeighted(parallel),
		Client:     cli,
	}, nil
}
