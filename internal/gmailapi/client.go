// Package gmailapi is the sole boundary between the pipeline and the Gmail
// API: every outbound call goes through Client, which bounds concurrency,
// retries transient failures with backoff, and trips a circuit breaker on
// sustained server-side failure, generalizing the teacher adapter's
// executeWithCircuitBreaker pattern (adapter/out/provider/worker_gmail_adapter.go).
package gmailapi

import (
	"context"
	"time"

	"google.golang.org/api/gmail/v1"
)

// Client is the narrow surface the pipeline depends on (spec §4.1). Every
// method is safe for concurrent use.
type Client interface {
	ListMessageIDs(ctx context.Context, query string, pageToken string) (ids []string, nextPageToken string, err error)
	GetMessageMetadata(ctx context.Context, id string, headers []string) (*gmail.Message, error)
	ListLabels(ctx context.Context) ([]*gmail.Label, error)
	CreateLabel(ctx context.Context, name string) (*gmail.Label, error)
	ListFilters(ctx context.Context) ([]*gmail.Filter, error)
	CreateFilter(ctx context.Context, f *gmail.Filter) (*gmail.Filter, error)
	DeleteFilter(ctx context.Context, id string) error
	BatchModify(ctx context.Context, messageIDs []string, addLabelIDs, removeLabelIDs []string) error
}

// RequestMetadataHeaders is the fixed header set requested on every
// metadata fetch, enough to drive the classifier's rule cascade without
// pulling message bodies (spec §4.1, grounded on the teacher's
// gmailMetadataHeaders).
var RequestMetadataHeaders = []string{
	"From", "To", "Subject", "Date",
	"List-Unsubscribe", "List-Unsubscribe-Post", "List-Id",
	"Precedence", "Auto-Submitted", "X-Auto-Response-Suppress",
	"X-Mailer", "Feedback-ID",
}

// Clock abstracts time.Now for deterministic backoff tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
