// Package webhook implements the HTTP client that delivers finalized
// transcript turns to an external endpoint. It posts JSON bodies with
// retry logic, exponential backoff, and a concurrency semaphore.
package webhook
