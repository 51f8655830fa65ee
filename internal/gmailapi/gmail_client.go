package gmailapi

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/victor-bajanov/gmail-cleanup-automation/pkg/apperr"
)

// Config configures a GmailClient.
type Config struct {
	// Width is the maximum number of in-flight Gmail API calls, held
	// across retries (spec §4.1, default 40).
	Width int
	Log   zerolog.Logger
}

const defaultWidth = 40

// GmailClient implements Client against a live *gmail.Service, bounding
// concurrency with a semaphore and wrapping every call in a retrier and a
// circuit breaker (spec §4.1).
type GmailClient struct {
	svc *gmail.Service
	sem chan struct{}
	cb  *gobreaker.CircuitBreaker
	log zerolog.Logger
}

// New builds a GmailClient from an already-refreshed oauth2.TokenSource.
func New(ctx context.Context, ts oauth2.TokenSource, cfg Config) (*GmailClient, error) {
	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "construct gmail service")
	}

	width := cfg.Width
	if width <= 0 {
		width = defaultWidth
	}

	return &GmailClient{
		svc: svc,
		sem: make(chan struct{}, width),
		cb:  newCircuitBreaker(cfg.Log),
		log: cfg.Log,
	}, nil
}

func (c *GmailClient) acquire() func() {
	c.sem <- struct{}{}
	return func() { <-c.sem }
}

// nonCircuitError marks an error that should not count toward the circuit
// breaker's trip threshold (grounded on the teacher's nonCircuitError).
type nonCircuitError struct{ err error }

func (e *nonCircuitError) Error() string { return e.err.Error() }
func (e *nonCircuitError) Unwrap() error { return e.err }

// isPermanent reports whether a googleapi.Error should be treated as
// non-retriable (spec §4.1: 400/401/403/404 are permanent).
func isPermanent(err error) bool {
	apiErr, ok := err.(*googleapi.Error)
	if !ok {
		return false
	}
	switch apiErr.Code {
	case 400, 401, 403, 404:
		return true
	default:
		return false
	}
}

// call runs fn under the semaphore, with the circuit breaker wrapping a
// bounded exponential backoff retrier — the semaphore slot is held across
// every retry attempt (spec §4.1).
func (c *GmailClient) call(ctx context.Context, operation string, fn func() error) error {
	release := c.acquire()
	defer release()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialInterval
	bo.Multiplier = 2
	bo.MaxInterval = maxInterval
	bo.MaxElapsedTime = maxElapsedTime
	bctx := backoff.WithContext(bo, ctx)

	retryable := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if isPermanent(err) {
			return backoff.Permanent(&nonCircuitError{err: err})
		}
		return err
	}

	_, cbErr := c.cb.Execute(func() (any, error) {
		return nil, backoff.Retry(retryable, bctx)
	})
	if cbErr == nil {
		return nil
	}

	var nce *nonCircuitError
	if errors.As(cbErr, &nce) {
		return apperr.RemotePermanent(operation, nce.err)
	}

	c.log.Warn().Str("operation", operation).Str("circuit_state", c.cb.State().String()).Err(cbErr).Msg("gmail api call failed")
	return apperr.Wrap(cbErr, apperr.KindNetworkTimeout, fmt.Sprintf("gmail api call failed: %s", operation))
}

func (c *GmailClient) ListMessageIDs(ctx context.Context, query string, pageToken string) ([]string, string, error) {
	var ids []string
	var next string
	err := c.call(ctx, "ListMessageIDs", func() error {
		call := c.svc.Users.Messages.List("me").Q(query).MaxResults(100)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return err
		}
		ids = make([]string, 0, len(resp.Messages))
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		next = resp.NextPageToken
		return nil
	})
	return ids, next, err
}

func (c *GmailClient) GetMessageMetadata(ctx context.Context, id string, headers []string) (*gmail.Message, error) {
	var msg *gmail.Message
	err := c.call(ctx, "GetMessageMetadata", func() error {
		resp, err := c.svc.Users.Messages.Get("me", id).
			Format("metadata").
			MetadataHeaders(headers...).
			Context(ctx).Do()
		if err != nil {
			return err
		}
		msg = resp
		return nil
	})
	return msg, err
}

func (c *GmailClient) ListLabels(ctx context.Context) ([]*gmail.Label, error) {
	var labels []*gmail.Label
	err := c.call(ctx, "ListLabels", func() error {
		resp, err := c.svc.Users.Labels.List("me").Context(ctx).Do()
		if err != nil {
			return err
		}
		labels = resp.Labels
		return nil
	})
	return labels, err
}

func (c *GmailClient) CreateLabel(ctx context.Context, name string) (*gmail.Label, error) {
	var label *gmail.Label
	err := c.call(ctx, "CreateLabel", func() error {
		resp, err := c.svc.Users.Labels.Create("me", &gmail.Label{
			Name:                  name,
			LabelListVisibility:   "labelShow",
			MessageListVisibility: "show",
		}).Context(ctx).Do()
		if err != nil {
			// Gmail returns 409 when two concurrent runs race to create
			// the same label; treated as permanent so the caller falls
			// back to re-listing labels (spec §4.7 step 3).
			if apiErr, ok := err.(*googleapi.Error); ok && apiErr.Code == 409 {
				return backoff.Permanent(&nonCircuitError{err: err})
			}
			return err
		}
		label = resp
		return nil
	})
	return label, err
}

func (c *GmailClient) ListFilters(ctx context.Context) ([]*gmail.Filter, error) {
	var filters []*gmail.Filter
	err := c.call(ctx, "ListFilters", func() error {
		resp, err := c.svc.Users.Settings.Filters.List("me").Context(ctx).Do()
		if err != nil {
			return err
		}
		filters = resp.Filter
		return nil
	})
	return filters, err
}

func (c *GmailClient) CreateFilter(ctx context.Context, f *gmail.Filter) (*gmail.Filter, error) {
	var created *gmail.Filter
	err := c.call(ctx, "CreateFilter", func() error {
		resp, err := c.svc.Users.Settings.Filters.Create("me", f).Context(ctx).Do()
		if err != nil {
			return err
		}
		created = resp
		return nil
	})
	return created, err
}

func (c *GmailClient) DeleteFilter(ctx context.Context, id string) error {
	return c.call(ctx, "DeleteFilter", func() error {
		return c.svc.Users.Settings.Filters.Delete("me", id).Context(ctx).Do()
	})
}

// BatchModify applies label changes to up to 1000 message ids per call
// (spec §4.9); callers chunk larger sets before calling this.
func (c *GmailClient) BatchModify(ctx context.Context, messageIDs []string, addLabelIDs, removeLabelIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	return c.call(ctx, "BatchModify", func() error {
		return c.svc.Users.Messages.BatchModify("me", &gmail.BatchModifyMessagesRequest{
			Ids:            messageIDs,
			AddLabelIds:    addLabelIDs,
			RemoveLabelIds: removeLabelIDs,
		}).Context(ctx).Do()
	})
}

// HeaderValue returns the first value of the named header, case-insensitive,
// or "" if absent.
func HeaderValue(msg *gmail.Message, name string) string {
	if msg == nil || msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}
