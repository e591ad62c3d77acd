package ports

import (
	"context"
	"time"
)

// FileStorage keeps generated report files. Save returns the name URL expects.
type FileStorage interface {
	Save(ctx context.Context, fileName string, data []byte) (string, error)
	URL(ctx context.Context, name string) (string, error)
}

// StatusStore is the key/value store report statuses live in until they expire.
type StatusStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	SAdd(ctx context.Context, key string, members ...any) error
	SRem(ctx context.Context, key string, members ...any) error
	SMembers(ctx context.Context, key string) ([]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

type ReportNotifier interface {
	NotifyReportProgress(ctx context.Context, userID int64, reportID string, progress float64, stage string) error
	NotifyReportComplete(ctx context.Context, userID int64, reportID, url, filename string) error
	NotifyReportFailed(ctx context.Context, userID int64, reportID, errMsg string) error
}
