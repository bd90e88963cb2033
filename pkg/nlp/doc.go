// Package nlp provides language model clients used for relevance judgments.
//
// # Supported Providers
//
//   - OpenAI: GPT models and any OpenAI-compatible API (Ollama, vLLM, etc.)
//   - Anthropic: Claude models
//
// # Client Wrappers
//
//   - RetryClient: Automatic retry with exponential backoff
//   - CircuitBreakerClient: Circuit breaker pattern for fault tolerance
//
// # Usage
//
//	client, err := nlp.NewOpenAIClient(apiKey, nlp.Config{
//	    Model:       "gpt-4o-mini",
//	    Temperature: nlp.Float32(0),
//	    MaxTokens:   nlp.Int(1),
//	})
//
//	guarded := nlp.NewCircuitBreakerClient(
//	    nlp.NewRetryClient(client, nil), cfg.CircuitBreaker, alerter, "classifier", logger)
//
// # Error Handling
//
// A 429 from either provider becomes a *RateLimitError carrying the
// Retry-After hint; other HTTP failures become a *StatusError. RetryClient
// retries only those two, plus timeouts. errors.Is(err, ErrRateLimit) matches
// every rate limit.
package nlp
