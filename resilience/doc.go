// Package resilience guards outbound calls made while authenticating
// requests, chiefly key-set fetches from identity providers.
//
// # Patterns
//
//   - Circuit Breaker: stops calling an endpoint after consecutive failures
//     and lets a trial request through again after ResetTimeout.
//
//   - Retry: retries failed operations with exponential or constant backoff.
//
//   - Rate Limiter: token bucket; EveryInterval builds a limiter admitting one
//     operation per interval, used to bound miss-triggered refreshes.
//
//   - Timeout: bounds each attempt.
//
// # Usage
//
//	executor := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	        MaxFailures:  5,
//	        ResetTimeout: time.Minute,
//	    })),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 2})),
//	    resilience.WithTimeout(10*time.Second),
//	)
//
//	body, err := resilience.Do(ctx, executor, fetchKeySet)
package resilience
