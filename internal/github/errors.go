package github

import "errors"

// ErrRateLimited is returned when GitHub reports that the token's rate limit
// is exhausted. Callers are expected to abort the current cycle and retry
// later instead of hammering the API.
var ErrRateLimited = errors.New("github rate limit exhausted")

// ErrNotFound is returned for 404 responses (missing repository, deleted
// tag/branch, absent file).
var ErrNotFound = errors.New("github resource not found")
