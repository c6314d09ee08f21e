// Package nlp provides the LLM collaborators behind hybrid search: the
// intent classifier and the candidate reranker, both built on a shared
// chat client abstraction.
//
// # Providers
//
// The base client speaks the OpenAI chat API and works against any
// OpenAI-compatible service (Ollama, vLLM, etc.) through a custom base URL.
//
// # Client Wrappers
//
// The package provides several wrapper clients for enhanced functionality:
//   - RetryClient: Automatic retry with exponential backoff
//   - TokenTrackingClient: Track token usage across requests
//   - CircuitBreakerClient: Circuit breaker pattern for fault tolerance
//
// # Usage
//
//	// Create a base client
//	client, err := nlp.NewOpenAIClient(apiKey, config)
//
//	// Wrap with retry logic
//	retryClient := nlp.NewRetryClient(client, nlp.DefaultRetryConfig())
//
//	// Build the collaborators
//	classifier := nlp.NewClassifier(retryClient, logger)
//	reranker := nlp.NewLLMReranker(retryClient, logger)
//
// Both collaborators are optional: the search pipeline degrades to
// deterministic heuristics when they are absent or failing.
//
// # Error Handling
//
// The package defines specific error types for common failure modes:
//   - RateLimitError: API rate limit exceeded
//   - RefusalError: Model refused to generate content
//   - EmptyResponseError: Model returned empty response
//
// These errors support errors.Is() for type checking.
package nlp
