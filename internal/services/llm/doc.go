// Package llm provides an OpenRouter chat client used to translate subtitle
// lines.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.CompleteJSON: send system/user prompts, receive a JSON response.
// Client.Translate: translate one line, expecting {"translation": "..."}.
// Client.HealthCheck: verify API key and model availability.
//
// # Retry Behaviour
//
// Requests go through the retry package: HTTP 408/429/5xx, network timeouts,
// and empty completions are retried with exponential backoff (base 1s, max
// 10s, up to 5 attempts by default). Retry-After headers are honoured.
// Context cancellation aborts retries immediately.
package llm
