package rag

import (
	"errors"
	"fmt"
	"time"
)

var ErrEmptyQuestion = errors.New("question is empty")

// NotFoundError covers both an unknown paper and a known paper with no usable
// content; Reason tells the caller which.
type NotFoundError struct {
	Resource string
	ID       string
	Reason   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found: %s", e.Resource, e.ID, e.Reason)
}

// RateLimitedError signals the generation capability is temporarily out of
// quota; RetryAfter is the suggested wait before retrying.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("upstream rate limit reached, retry after %s", e.RetryAfter)
}

// UpstreamError is any other provider-side failure. The wrapped cause is kept
// for logs but never shown to the caller.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
