package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"

	"github.com/victor-bajanov/gmail-cleanup-automation/internal/domain"
)

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

type stubClient struct {
	pages   [][]string
	nextTok []string
	byID    map[string]*gmail.Message
	failIDs map[string]bool
	listCall int
}

func (s *stubClient) ListMessageIDs(ctx context.Context, query, pageToken string) ([]string, string, error) {
	idx := s.listCall
	s.listCall++
	if idx >= len(s.pages) {
		return nil, "", nil
	}
	return s.pages[idx], s.nextTok[idx], nil
}
func (s *stubClient) GetMessageMetadata(ctx context.Context, id string, headers []string) (*gmail.Message, error) {
	if s.failIDs[id] {
		return nil, assertErr{}
	}
	return s.byID[id], nil
}
func (s *stubClient) ListLabels(ctx context.Context) ([]*gmail.Label, error)  { return nil, nil }
func (s *stubClient) CreateLabel(ctx context.Context, n string) (*gmail.Label, error) {
	return nil, nil
}
func (s *stubClient) ListFilters(ctx context.Context) ([]*gmail.Filter, error) { return nil, nil }
func (s *stubClient) CreateFilter(ctx context.Context, f *gmail.Filter) (*gmail.Filter, error) {
	return nil, nil
}
func (s *stubClient) DeleteFilter(ctx context.Context, id string) error { return nil }
func (s *stubClient) BatchModify(ctx context.Context, ids []string, add, remove []string) error {
	return nil
}

type assertErr struct{}

func (assertErr) Error() string { return "permanent failure" }

func msg(id, from, subject string) *gmail.Message {
	return &gmail.Message{
		Id: id,
		Payload: &gmail.MessagePart{
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: from},
				{Name: "Subject", Value: subject},
			},
		},
	}
}

func TestScan_PaginatesAndChecksPointAtPageEnd(t *testing.T) {
	client := &stubClient{
		pages:   [][]string{{"a", "b"}, {"c"}},
		nextTok: []string{"page2", ""},
		byID: map[string]*gmail.Message{
			"a": msg("a", "alerts@example.com", "Alert 1"),
			"b": msg("b", "alerts@example.com", "Alert 2"),
			"c": msg("c", "billing@example.com", "Invoice"),
		},
		failIDs: map[string]bool{},
	}

	var checkpoints []domain.ScanCheckpoint
	s := &Scanner{
		Client: client,
		Clock:  fixedClock{t: time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)},
		Width:  10,
		OnCheckpoint: func(cp domain.ScanCheckpoint) {
			checkpoints = append(checkpoints, cp)
		},
	}

	messages, err := s.Scan(context.Background(), 30, nil)
	require.NoError(t, err)
	assert.Len(t, messages, 3)
	require.NotEmpty(t, checkpoints)
	assert.True(t, checkpoints[len(checkpoints)-1].Done)
}

func TestScan_PermanentFailureRecordedNotAborting(t *testing.T) {
	client := &stubClient{
		pages:   [][]string{{"a", "bad"}},
		nextTok: []string{""},
		byID: map[string]*gmail.Message{
			"a": msg("a", "alerts@example.com", "Alert"),
		},
		failIDs: map[string]bool{"bad": true},
	}

	s := &Scanner{
		Client: client,
		Clock:  fixedClock{t: time.Now()},
		Width:  10,
	}

	messages, err := s.Scan(context.Background(), 30, nil)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "a", messages[0].ID)
}

func TestScan_AlreadyDoneCheckpointSkipsWork(t *testing.T) {
	client := &stubClient{}
	s := &Scanner{Client: client, Clock: fixedClock{t: time.Now()}, Width: 10}

	messages, err := s.Scan(context.Background(), 30, &domain.ScanCheckpoint{Done: true})
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.Equal(t, 0, client.listCall)
}

func TestRegistrableDomain_StripsSubdomains(t *testing.T) {
	m := convert(msg("x", "updates@news.marketing.example.com", "hi"))
	assert.Equal(t, "example.com", m.SenderDomain)
	assert.Equal(t, "updates@news.marketing.example.com", m.SenderEmail)
}

func TestConvert_IsAutomatedFromSenderLocalPartWithNoHeaders(t *testing.T) {
	m := convert(msg("x", "noreply@example.com", "hi"))
	assert.False(t, m.HasUnsubscribe)
	assert.True(t, m.IsAutomated, "local-part bias table should mark noreply@ as automated even without unsubscribe/precedence headers")
}

func TestConvert_IsAutomatedFromAutomationDomainWithNoHeaders(t *testing.T) {
	m := convert(msg("x", "updates@sendgrid.net", "hi"))
	assert.False(t, m.HasUnsubscribe)
	assert.True(t, m.IsAutomated, "automation-service domain table should mark the sender as automated even without unsubscribe/precedence headers")
}

func TestConvert_IsAutomatedFalseWhenNoSignalMatches(t *testing.T) {
	m := convert(msg("x", "alice@example.com", "hi"))
	assert.False(t, m.IsAutomated)
}
