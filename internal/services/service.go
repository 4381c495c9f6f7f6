package services

import (
	"context"
	"time"
)

// Status strings carried in StatusResult.
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
)

// StatusResult is the shape returned by operations with no payload.
type StatusResult struct {
	Status string `json:"status"`
}

func success() StatusResult { return StatusResult{Status: StatusSuccess} }
func fail() StatusResult    { return StatusResult{Status: StatusFail} }

// OK reports whether the operation succeeded.
func (r StatusResult) OK() bool { return r.Status == StatusSuccess }

const defaultOpTimeout = 5 * time.Second

// withTimeout bounds a store round trip. Zero falls back to the default.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultOpTimeout
	}
	return context.WithTimeout(ctx, d)
}
