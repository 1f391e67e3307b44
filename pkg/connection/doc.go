// Package connection provides retry discipline for tosca clients.
//
// Event subscriptions and periodic publishers reconnect with exponential
// backoff:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s, 32s
//  3. Maximum delay: 60 seconds
//  4. Reset to 1s after a successful (or long enough) session
//
// # Jitter
//
// To prevent thundering herd when many controllers reconnect at once:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
//
// Retry runs a single operation until it succeeds. A Supervisor restarts a
// long-running session, such as an event subscription, each time it ends
// with a retryable error.
package connection
