package ai

import (
	"context"
)

// AIProvider is the interface for AI providers
type AIProvider interface {
	// Complete runs one chat completion
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)

	// Model names the model used for completions
	Model() string
}

// CompletionRequest is a single system+user prompt exchange
type CompletionRequest struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
	JSON        bool
	// Operation labels the request in logs
	Operation string
	// EndUser is sent to the provider only as a hash
	EndUser string
}

// NewCompletionRequest builds a request from a rendered prompt.
func NewCompletionRequest(p *Prompt) *CompletionRequest {
	return &CompletionRequest{
		System:      p.System,
		User:        p.User,
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
		JSON:        p.JSON,
		Operation:   string(p.Feature),
	}
}

// Completion is the provider's answer
type Completion struct {
	Text       string
	TokensUsed int
	Model      string
}

// ProviderFactory creates an AI provider based on the provider type
type ProviderFactory func(config map[string]string) (AIProvider, error)

// ProviderRegistry stores available AI providers
type ProviderRegistry struct {
	providers map[string]ProviderFactory
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]ProviderFactory),
	}
}

// Register registers a provider factory
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.providers[name] = factory
}

// GetProvider gets a provider by name
func (r *ProviderRegistry) GetProvider(name string, config map[string]string) (AIProvider, error) {
	factory, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}

	return factory(config)
}

// ErrProviderNotFound is returned when a provider is not found
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return "AI provider not found: " + e.Name
}
