// Package httputil provides retry helpers shared by the ProductBoard and
// Azure DevOps clients.
//
// [Retry] re-runs an operation while it fails with a [RetryableError],
// doubling the delay after each attempt. A [RetryableError] may carry a
// server-provided delay (from a 429 Retry-After header) which replaces the
// computed backoff for that attempt:
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return &httputil.RetryableError{Err: err}
//	    }
//	    ...
//	})
//
// Defaults: 3 attempts, 1 second initial delay.
package httputil
