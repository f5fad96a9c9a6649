package github

import "errors"

// Fetch failures fall into four classes; the sync coordinator's handling
// depends on which one it gets. NotFound is a benign race, RateLimited and
// Network are retryable per path, Auth kills the whole attempt.
var (
	ErrContentNotFound = errors.New("github: content not found")
	ErrRateLimited     = errors.New("github: rate limited")
	ErrNetwork         = errors.New("github: network error")
	ErrAuth            = errors.New("github: authentication failed")
)

func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrNetwork)
}
