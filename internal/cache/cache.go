package cache

import (
	"context"
	"time"
)

// ReportCache stores rendered report payloads keyed by report name and
// period. Values are JSON round-tripped, so dest must be a pointer to the
// same type that was Set.
type ReportCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string, _ any) (bool, error) {
	return false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ any, _ time.Duration) error {
	return nil
}
