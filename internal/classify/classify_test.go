package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victor-bajanov/gmail-cleanup-automation/internal/domain"
)

func TestClassify_Determinism(t *testing.T) {
	m := domain.MessageMetadata{
		ID:          "m1",
		SenderEmail: "noreply@stripe.com",
		SenderDomain: "stripe.com",
		Subject:     "Your invoice is ready",
		ReceivedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	first := Classify(m)
	second := Classify(m)
	assert.Equal(t, first, second)
}

func TestClassify_KnownServiceOverridesCategory(t *testing.T) {
	m := domain.MessageMetadata{
		SenderEmail:  "receipts@stripe.com",
		SenderDomain: "stripe.com",
		Subject:      "Payment received",
	}
	c := Classify(m)
	require.Equal(t, domain.CategoryFinancial, c.Category)
	assert.Equal(t, "AutoManaged/financial/stripe", c.SuggestedPath)
}

func TestClassify_NewsletterArchiveHint(t *testing.T) {
	m := domain.MessageMetadata{
		SenderEmail:    "newsletter@example.com",
		SenderDomain:   "example.com",
		Subject:        "Your weekly digest",
		HasUnsubscribe: true,
	}
	c := Classify(m)
	assert.Equal(t, domain.CategoryNewsletter, c.Category)
	assert.True(t, c.ArchiveHint)
}

func TestClassify_PersonalNeverArchived(t *testing.T) {
	m := domain.MessageMetadata{
		SenderEmail:  "jane@gmail.com",
		SenderDomain: "gmail.com",
		Subject:      "dinner friday?",
	}
	c := Classify(m)
	assert.False(t, c.ArchiveHint)
}

func TestClassify_UrgentSecurityBoostsPriority(t *testing.T) {
	base := domain.MessageMetadata{
		SenderEmail:  "alerts@example.com",
		SenderDomain: "example.com",
		Subject:      "account notice",
	}
	urgent := base
	urgent.Subject = "urgent security alert: verify your account"

	baseResult := Classify(base)
	urgentResult := Classify(urgent)

	// Notification archive threshold is 30 and the Notification baseline
	// priority is 35, so the base variant is already not archivable; the
	// urgent variant's boost keywords raise its priority further, and it
	// must not be archivable either.
	assert.False(t, urgentResult.ArchiveHint)
	_ = baseResult
}

func TestSlugify_TruncatesAndStripsPunctuation(t *testing.T) {
	got := slugify("Newsletter!! From @Example.com (Weekly)")
	assert.LessOrEqual(t, len(got), 50)
	assert.NotContains(t, got, "!")
	assert.NotContains(t, got, "@")
}
