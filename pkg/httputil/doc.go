// Package httputil provides retry helpers for outgoing HTTP requests made
// while fetching backing data.
//
// [Retry] runs an operation with exponential backoff, retrying only errors
// wrapped with [Retryable]. [CheckStatus] classifies a response: 5xx and 429
// become retryable, other non-2xx statuses fail immediately.
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return httputil.Retryable(err)
//	    }
//	    defer resp.Body.Close()
//	    return httputil.CheckStatus(resp)
//	})
package httputil
