package analytics

import "context"

// ClickRepository is the durable store for visits and per-date click buckets.
//
// RecordVisit must increment the (token, date) bucket's total and device
// counter in one atomic storage operation and append the visit document; the
// bucket update may never split into separate total/device increments.
type ClickRepository interface {
	RecordVisit(ctx context.Context, visit Visit) error
	BucketsByTokens(ctx context.Context, tokens []string) ([]DateClicks, error)
	TotalsByTokens(ctx context.Context, tokens []string) (map[string]int64, error)
	VisitsByTokens(ctx context.Context, tokens []string) ([]Visit, error)
	PurgeToken(ctx context.Context, token string) error
}
