package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/focus-companion/internal/cache"
	"github.com/benvon/focus-companion/internal/logger"
	"github.com/benvon/focus-companion/internal/metrics"
	"github.com/benvon/focus-companion/internal/models"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Source says where a result came from.
type Source string

const (
	SourceCache    Source = "cache"
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
)

const (
	// ReasonUnavailable is used when no provider is configured
	ReasonUnavailable = "AI service not available"
	// ReasonBreakerOpen is used while the circuit breaker rejects calls
	ReasonBreakerOpen = "AI service temporarily unavailable"
	// ReasonCallFailed is used when the provider call returned an error
	ReasonCallFailed = "AI request failed"
	// ReasonInvalidResponse is used when a structured response could not be parsed
	ReasonInvalidResponse = "AI response was not valid"

	// DefaultCallTimeout bounds one provider call including retries
	DefaultCallTimeout = 45 * time.Second
)

var tracer = otel.Tracer("github.com/benvon/focus-companion/internal/services/ai")

// ResponseCache is the part of the response cache the assistant needs.
type ResponseCache interface {
	Get(ctx context.Context, key string) (string, bool)
	PutEntry(ctx context.Context, entry *models.CacheEntry) error
}

// UsageLimiter is the part of the usage limiter the assistant needs.
type UsageLimiter interface {
	CheckAllowed(ctx context.Context, userID string) (bool, string)
	RecordUsage(ctx context.Context, userID string) error
	IsFeatureEnabled(feature models.Feature) bool
}

// UsagePublisher ships ledger events to the usage worker.
type UsagePublisher interface {
	Publish(ctx context.Context, ev *models.UsageEvent) error
}

// FallbackGenerator produces rule-based text when the AI cannot be used.
type FallbackGenerator interface {
	Generate(feature models.Feature, req *models.GenerateRequest, now time.Time) string
}

// Request asks for one generated text.
type Request struct {
	UserID  string
	Feature models.Feature
	Input   *models.GenerateRequest
}

// Result is the text returned to the caller and how it was produced.
type Result struct {
	Text       string         `json:"text"`
	Feature    models.Feature `json:"feature"`
	Source     Source         `json:"source"`
	Reason     string         `json:"reason,omitempty"`
	CacheKey   string         `json:"cache_key,omitempty"`
	TokensUsed int            `json:"tokens_used,omitempty"`
}

// Assistant runs the cache, limiter, provider and fallback in order.
type Assistant struct {
	provider    AIProvider
	cache       ResponseCache
	limiter     UsageLimiter
	fallback    FallbackGenerator
	publisher   UsagePublisher
	breaker     *gobreaker.CircuitBreaker
	group       singleflight.Group
	cacheTTL    time.Duration
	callTimeout time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// AssistantOption configures an Assistant.
type AssistantOption func(*Assistant)

// WithProvider sets the AI provider. Without one every request falls back.
func WithProvider(p AIProvider) AssistantOption {
	return func(a *Assistant) { a.provider = p }
}

// WithPublisher sets where usage events are sent.
func WithPublisher(p UsagePublisher) AssistantOption {
	return func(a *Assistant) { a.publisher = p }
}

// WithCacheTTL sets the TTL of stored responses. Zero uses the cache default.
func WithCacheTTL(ttl time.Duration) AssistantOption {
	return func(a *Assistant) { a.cacheTTL = ttl }
}

// WithCallTimeout bounds each provider call.
func WithCallTimeout(d time.Duration) AssistantOption {
	return func(a *Assistant) {
		if d > 0 {
			a.callTimeout = d
		}
	}
}

// WithBreakerSettings replaces the circuit breaker settings.
func WithBreakerSettings(s gobreaker.Settings) AssistantOption {
	return func(a *Assistant) { a.breaker = gobreaker.NewCircuitBreaker(s) }
}

// WithAssistantClock overrides the clock used for time-of-day prompts.
func WithAssistantClock(now func() time.Time) AssistantOption {
	return func(a *Assistant) { a.now = now }
}

// WithAssistantLogger sets the logger.
func WithAssistantLogger(l *zap.Logger) AssistantOption {
	return func(a *Assistant) {
		if l != nil {
			a.logger = l
		}
	}
}

// DefaultBreakerSettings opens after five consecutive failures and probes again after a minute.
func DefaultBreakerSettings(log *zap.Logger) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "ai-provider",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if log != nil {
				log.Warn("ai_breaker_state_changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			}
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
}

// NewAssistant wires an assistant over a cache, limiter and fallback generator.
func NewAssistant(c ResponseCache, l UsageLimiter, fb FallbackGenerator, opts ...AssistantOption) *Assistant {
	a := &Assistant{
		cache:       c,
		limiter:     l,
		fallback:    fb,
		callTimeout: DefaultCallTimeout,
		now:         time.Now,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.breaker == nil {
		a.breaker = gobreaker.NewCircuitBreaker(DefaultBreakerSettings(a.logger))
	}
	return a
}

// Available reports whether a provider is configured.
func (a *Assistant) Available() bool {
	return a.provider != nil
}

// CanUseFeature reports whether the AI may be used for feature by userID right now.
func (a *Assistant) CanUseFeature(ctx context.Context, feature models.Feature, userID string) (bool, string) {
	if a.provider == nil {
		return false, ReasonUnavailable
	}
	if !a.limiter.IsFeatureEnabled(feature) {
		return false, fmt.Sprintf("Feature '%s' is disabled for beta testing", feature)
	}
	return a.limiter.CheckAllowed(ctx, userID)
}

type callOutcome struct {
	text   string
	tokens int
}

// Generate returns text for req. It only errors on an unknown feature; every
// other failure produces a fallback result.
func (a *Assistant) Generate(ctx context.Context, req Request) (*Result, error) {
	if !req.Feature.IsValid() {
		return nil, fmt.Errorf("unknown feature %q", req.Feature)
	}
	input := req.Input
	if input == nil {
		input = &models.GenerateRequest{}
	}

	ctx, span := tracer.Start(ctx, "assistant.generate")
	defer span.End()
	span.SetAttributes(attribute.String("ai.feature", string(req.Feature)))

	now := a.now()
	prompt, err := BuildPrompt(req.Feature, input, now)
	if err != nil {
		return nil, err
	}
	key := a.cacheKey(req.UserID, prompt)

	result := a.generate(ctx, req, input, prompt, key, now)
	span.SetAttributes(attribute.String("ai.source", string(result.Source)))
	if result.Reason != "" {
		span.SetAttributes(attribute.String("ai.reason", result.Reason))
	}
	metrics.Generations.WithLabelValues(string(req.Feature), string(result.Source)).Inc()
	return result, nil
}

func (a *Assistant) cacheKey(userID string, p *Prompt) string {
	if userID == "" {
		return ""
	}
	fields := make(map[string]any, len(p.CacheFields)+1)
	for k, v := range p.CacheFields {
		fields[k] = v
	}
	fields["user"] = userID
	return cache.MakeKey(string(p.Feature), fields)
}

func (a *Assistant) generate(ctx context.Context, req Request, input *models.GenerateRequest, prompt *Prompt, key string, now time.Time) *Result {
	if key != "" {
		if text, ok := a.cache.Get(ctx, key); ok {
			a.logger.Debug("ai_cache_hit",
				zap.String("feature", string(req.Feature)),
				zap.String("user_id", logger.SanitizeUserID(req.UserID)),
			)
			return &Result{Text: text, Feature: req.Feature, Source: SourceCache, CacheKey: key}
		}
	}

	if ok, reason := a.CanUseFeature(ctx, req.Feature, req.UserID); !ok {
		return a.fallbackResult(req, input, now, reason)
	}

	flightKey := key
	if flightKey == "" {
		flightKey = string(req.Feature) + ":" + req.UserID
	}
	// The shared call must outlive a single caller's cancellation.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.callTimeout)
	defer cancel()
	leader := false
	v, err, _ := a.group.Do(flightKey, func() (any, error) {
		leader = true
		return a.call(callCtx, req, prompt, key)
	})
	if err != nil {
		reason := ReasonCallFailed
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			reason = ReasonBreakerOpen
		case errors.Is(err, errInvalidResponse):
			reason = ReasonInvalidResponse
		}
		a.logger.Warn("ai_generation_failed",
			zap.String("feature", string(req.Feature)),
			zap.String("user_id", logger.SanitizeUserID(req.UserID)),
			zap.Error(err),
		)
		return a.fallbackResult(req, input, now, reason)
	}

	out := v.(*callOutcome)
	res := &Result{Text: out.text, Feature: req.Feature, Source: SourceAI, CacheKey: key}
	// tokens are reported to the caller that made the call only
	if leader {
		res.TokensUsed = out.tokens
	}
	return res
}

var errInvalidResponse = errors.New("invalid structured response")

// call makes the real provider request. A completed call is always recorded,
// even if its content is unusable, because the quota was spent.
func (a *Assistant) call(ctx context.Context, req Request, prompt *Prompt, key string) (*callOutcome, error) {
	ctx, span := tracer.Start(ctx, "assistant.provider_call")
	defer span.End()

	start := time.Now()
	creq := NewCompletionRequest(prompt)
	creq.EndUser = req.UserID
	v, err := a.breaker.Execute(func() (any, error) {
		return a.provider.Complete(ctx, creq)
	})
	latency := time.Since(start)
	if err != nil {
		metrics.ProviderLatency.WithLabelValues(string(req.Feature), "error").Observe(latency.Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider call failed")
		if !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests) {
			a.publish(ctx, models.NewUsageEvent(req.UserID, req.Feature, a.provider.Model(), 0, err))
		}
		return nil, err
	}
	metrics.ProviderLatency.WithLabelValues(string(req.Feature), "ok").Observe(latency.Seconds())

	completion := v.(*Completion)
	span.SetAttributes(attribute.Int("ai.tokens_used", completion.TokensUsed))

	if err := a.limiter.RecordUsage(ctx, req.UserID); err != nil {
		a.logger.Error("usage_record_failed",
			zap.String("feature", string(req.Feature)),
			zap.String("user_id", logger.SanitizeUserID(req.UserID)),
			zap.Error(err),
		)
	}

	var invalid error
	if prompt.JSON && !gjson.Valid(completion.Text) {
		invalid = fmt.Errorf("%w: %s is not JSON", errInvalidResponse, req.Feature)
	}
	a.publish(ctx, models.NewUsageEvent(req.UserID, req.Feature, completion.Model, completion.TokensUsed, invalid))
	if invalid != nil {
		return nil, invalid
	}

	if key != "" {
		entry := &models.CacheEntry{
			Key:      key,
			Feature:  string(req.Feature),
			UserID:   req.UserID,
			Response: completion.Text,
			TTL:      a.cacheTTL,
		}
		if err := a.cache.PutEntry(ctx, entry); err != nil {
			a.logger.Warn("ai_cache_write_failed",
				zap.String("feature", string(req.Feature)),
				zap.Error(err),
			)
		}
	}

	a.logger.Info("ai_generation_completed",
		zap.String("feature", string(req.Feature)),
		zap.String("user_id", logger.SanitizeUserID(req.UserID)),
		zap.Int("tokens_used", completion.TokensUsed),
		zap.Int64("latency_ms", latency.Milliseconds()),
	)
	return &callOutcome{text: completion.Text, tokens: completion.TokensUsed}, nil
}

func (a *Assistant) publish(ctx context.Context, ev *models.UsageEvent) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.Publish(ctx, ev); err != nil {
		a.logger.Warn("usage_event_publish_failed",
			zap.String("feature", string(ev.Feature)),
			zap.Error(err),
		)
	}
}

func (a *Assistant) fallbackResult(req Request, input *models.GenerateRequest, now time.Time, reason string) *Result {
	a.logger.Debug("ai_fallback_used",
		zap.String("feature", string(req.Feature)),
		zap.String("user_id", logger.SanitizeUserID(req.UserID)),
		zap.String("reason", reason),
	)
	return &Result{
		Text:    a.fallback.Generate(req.Feature, input, now),
		Feature: req.Feature,
		Source:  SourceFallback,
		Reason:  reason,
	}
}
