// Package scanner fans out message-metadata fetches across a date-bounded
// query, producing MessageMetadata and checkpointing progress into
// RunState every 100 messages or at a page boundary (spec §4.2).
package scanner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/gmail/v1"

	"github.com/victor-bajanov/gmail-cleanup-automation/internal/classify"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/domain"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/gmailapi"
)

// Clock abstracts time.Now so the "after:YYYY/MM/DD" query is
// deterministic and testable.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Width is the buffer width for the per-page fan-out, matching the
// client's semaphore width (spec §4.2).
type Scanner struct {
	Client gmailapi.Client
	Clock  Clock
	Width  int
	Log    zerolog.Logger

	// OnCheckpoint is invoked every 100 successfully fetched messages and
	// at the end of each page (spec §4.2 "Checkpointing").
	OnCheckpoint func(domain.ScanCheckpoint)
}

// Scan fetches metadata for every message in the last `days` days,
// starting from checkpoint if non-nil (resume). Returns messages fetched
// this call (resume callers are expected to accumulate across calls if
// the process restarts mid-scan; within one process run the returned
// slice is the complete result).
func (s *Scanner) Scan(ctx context.Context, days int, checkpoint *domain.ScanCheckpoint) ([]domain.MessageMetadata, error) {
	width := s.Width
	if width <= 0 {
		width = 40
	}

	query := fmt.Sprintf("after:%s", s.Clock.Now().AddDate(0, 0, -days).Format("2006/01/02"))

	cp := domain.ScanCheckpoint{}
	if checkpoint != nil {
		cp = *checkpoint
	}
	if cp.Done {
		return nil, nil
	}

	var messages []domain.MessageMetadata
	var failedIDs []string
	fetchedSinceCheckpoint := 0

	for {
		ids, nextToken, err := s.Client.ListMessageIDs(ctx, query, cp.PageToken)
		if err != nil {
			return messages, err
		}

		page, pageFailed := s.fetchPage(ctx, ids, width)
		messages = append(messages, page...)
		failedIDs = append(failedIDs, pageFailed...)
		fetchedSinceCheckpoint += len(page)

		if len(page) > 0 {
			cp.LastMessageID = page[len(page)-1].ID
		}
		cp.FetchedCount += len(page)
		cp.FailedMessageIDs = append(cp.FailedMessageIDs, pageFailed...)
		cp.PageToken = nextToken

		if fetchedSinceCheckpoint >= 100 {
			s.checkpoint(cp)
			fetchedSinceCheckpoint = 0
		}

		if nextToken == "" {
			cp.Done = true
			s.checkpoint(cp)
			break
		}
		// End of page: checkpoint regardless of the 100-message threshold
		// (spec §4.2 "and at the end of each page").
		s.checkpoint(cp)
	}

	return messages, nil
}

func (s *Scanner) checkpoint(cp domain.ScanCheckpoint) {
	if s.OnCheckpoint != nil {
		s.OnCheckpoint(cp)
	}
}

// fetchPage fans out get_message_metadata for one page's ids with buffer
// width equal to the client's semaphore width (spec §4.2). Permanent
// per-message failures are collected rather than aborting the page.
func (s *Scanner) fetchPage(ctx context.Context, ids []string, width int) ([]domain.MessageMetadata, []string) {
	type result struct {
		msg *domain.MessageMetadata
		id  string
		err error
	}

	sem := make(chan struct{}, width)
	results := make(chan result, len(ids))
	var wg sync.WaitGroup

	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			raw, err := s.Client.GetMessageMetadata(ctx, id, gmailapi.RequestMetadataHeaders)
			if err != nil {
				results <- result{id: id, err: err}
				return
			}
			m := convert(raw)
			results <- result{msg: &m}
		}(id)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var messages []domain.MessageMetadata
	var failed []string
	for r := range results {
		if r.err != nil {
			s.Log.Warn().Str("message_id", r.id).Err(r.err).Msg("permanent failure fetching message metadata")
			failed = append(failed, r.id)
			continue
		}
		messages = append(messages, *r.msg)
	}
	return messages, failed
}

// convert maps the wire Message into MessageMetadata, normalizing sender
// email/domain to lowercase (spec §3 invariant) and deriving
// has_unsubscribe / is_automated from headers plus the classifier's
// sender-pattern and automation-domain rule tables (spec §3's is_automated
// invariant spans all three signals; Precedence/Auto-Submitted headers are
// additional automation signals the header-level rule tables don't cover).
func convert(raw *gmail.Message) domain.MessageMetadata {
	from := gmailapi.HeaderValue(raw, "From")
	email, name := parseFromHeader(from)
	domainPart := registrableDomain(email)

	unsubscribe := gmailapi.HeaderValue(raw, "List-Unsubscribe") != ""
	automated := unsubscribe ||
		gmailapi.HeaderValue(raw, "Precedence") != "" ||
		gmailapi.HeaderValue(raw, "Auto-Submitted") != "" ||
		classify.IsAutomatedSignal(email, domainPart)

	var received time.Time
	if raw.InternalDate > 0 {
		received = time.UnixMilli(raw.InternalDate).UTC()
	}

	return domain.MessageMetadata{
		ID:             raw.Id,
		ThreadID:       raw.ThreadId,
		SenderEmail:    email,
		SenderDomain:   domainPart,
		SenderName:     name,
		Subject:        gmailapi.HeaderValue(raw, "Subject"),
		ReceivedAt:     received,
		LabelIDs:       raw.LabelIds,
		HasUnsubscribe: unsubscribe,
		IsAutomated:    automated,
	}
}

// parseFromHeader extracts a lowercase address and display name from a
// raw "From" header of the form `Display Name <addr@host>` or bare
// `addr@host`.
func parseFromHeader(from string) (email, name string) {
	from = strings.TrimSpace(from)
	if idx := strings.LastIndex(from, "<"); idx >= 0 && strings.HasSuffix(from, ">") {
		name = strings.Trim(strings.TrimSpace(from[:idx]), `"`)
		email = strings.ToLower(strings.TrimSuffix(from[idx+1:], ">"))
		return email, name
	}
	return strings.ToLower(from), ""
}

// registrableDomain strips subdomains down to the last two labels (spec
// §3 "registrable portion; subdomains stripped"), e.g.
// "updates.news.example.com" -> "example.com".
func registrableDomain(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return ""
	}
	host := email[at+1:]
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}
