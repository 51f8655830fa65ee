// Package classify implements the deterministic rule-cascade classifier
// (spec §4.3): pure function MessageMetadata -> Classification, no
// mutable state, no randomness. The cascade structure — ordered rule
// groups each contributing weighted score toward every category — is
// grounded on the teacher's multi-stage score pipeline
// (core/service/classification/worker_score_pipeline.go and
// worker_domain_score_classifier.go), simplified from the teacher's
// 7-stage RFC/Domain/Subject/SenderProfile/UserRules/SemanticCache/LLM
// cascade down to the rule families spec §4.3 names.
package classify

import (
	"regexp"
	"strings"

	"github.com/victor-bajanov/gmail-cleanup-automation/internal/domain"
)

// localPartBias maps a sender local-part prefix to the category it biases
// toward (spec §4.3 "Sender local-part patterns").
var localPartBias = map[string]domain.Category{
	"noreply":      domain.CategoryNotification,
	"no-reply":     domain.CategoryNotification,
	"donotreply":   domain.CategoryNotification,
	"notifications": domain.CategoryNotification,
	"alerts":       domain.CategoryNotification,
	"marketing":    domain.CategoryMarketing,
	"promo":        domain.CategoryMarketing,
	"newsletter":   domain.CategoryNewsletter,
	"news":         domain.CategoryNewsletter,
	"digest":       domain.CategoryNewsletter,
	"billing":      domain.CategoryFinancial,
	"orders":       domain.CategoryReceipt,
}

const localPartWeight = 30

// automationDomains is the set of well-known transactional/bulk mail
// infrastructure that marks a message automated regardless of category
// (spec §4.3 "Automation-service domains").
var automationDomains = map[string]bool{
	"sendgrid.net":      true,
	"sendgrid.com":      true,
	"mailchimp.com":     true,
	"mailchimpapp.net":  true,
	"amazonses.com":     true,
	"mailgun.org":       true,
	"mailgun.com":       true,
	"postmarkapp.com":   true,
	"sparkpostmail.com": true,
	"customeriomail.com": true,
	"hubspotemail.net":  true,
}

const automationDomainWeight = 10

// subjectFamily is one case-insensitive subject regex group (spec §4.3
// "Subject regex families").
type subjectFamily struct {
	pattern  *regexp.Regexp
	category domain.Category
	weight   float64
}

var subjectFamilies = []subjectFamily{
	{regexp.MustCompile(`(?i)\b(newsletter|digest|weekly)\b`), domain.CategoryNewsletter, 25},
	{regexp.MustCompile(`(?i)\b(receipt|invoice|order|payment)\b`), domain.CategoryReceipt, 25},
	{regexp.MustCompile(`(?i)\b(shipment|tracking|delivery|shipped|out for delivery)\b`), domain.CategoryShipping, 25},
	{regexp.MustCompile(`(?i)\b(statement|balance|wire transfer)\b`), domain.CategoryFinancial, 25},
	{regexp.MustCompile(`(?i)(\bsale\b|\bdiscount\b|%\s*off)`), domain.CategoryMarketing, 25},
	{regexp.MustCompile(`(?i)\b(security alert|verify your|password reset)\b`), domain.CategoryNotification, 25},
}

// serviceInfo is an entry in the known-service domain table (spec §4.3
// "Known-service domain table"), grounded on the teacher's domainConfig
// maps (stripe.com, paypal.com, amazon.com, shopify.com, etsy.com, ebay.com).
type serviceInfo struct {
	displayName  string
	category     domain.Category
	basePriority int
}

var knownServices = map[string]serviceInfo{
	"stripe.com":        {"Stripe", domain.CategoryFinancial, 55},
	"paypal.com":        {"PayPal", domain.CategoryReceipt, 55},
	"amazon.com":        {"Amazon", domain.CategoryShipping, 50},
	"shopify.com":       {"Shopify", domain.CategoryReceipt, 45},
	"etsy.com":          {"Etsy", domain.CategoryReceipt, 40},
	"ebay.com":          {"eBay", domain.CategoryReceipt, 40},
	"github.com":        {"GitHub", domain.CategoryNotification, 50},
	"linkedin.com":      {"LinkedIn", domain.CategoryNotification, 20},
	"docusign.net":      {"DocuSign", domain.CategoryNotification, 60},
}

// priorityKeywordBoost and priorityKeywordReduce bias the priority score
// after category scoring settles (spec §4.3 "priority score ... keywords
// urgent/security/payment boost; unsubscribe/marketing reduce").
var priorityKeywordBoost = []string{"urgent", "security", "payment", "past due", "failed"}
var priorityKeywordReduce = []string{"unsubscribe", "% off", "sale", "promo"}

const (
	archiveThresholdNewsletterMarketing = 40
	archiveThresholdNotification        = 30
)

func localPart(email string) string {
	at := strings.IndexByte(email, '@')
	if at < 0 {
		return strings.ToLower(email)
	}
	return strings.ToLower(email[:at])
}

// IsAutomatedSignal reports whether the sender local-part bias table or the
// automation-service domain table marks senderEmail as automated (spec §3
// "is_automated ... derived from sender pattern + ... known
// automated-sender-service domains"). The Scanner calls this to fold the
// classifier's rule tables into MessageMetadata.IsAutomated at scan time
// (the unsubscribe-header component of that invariant is a header the
// Scanner already reads directly, so it isn't duplicated here).
func IsAutomatedSignal(senderEmail, senderDomain string) bool {
	if _, ok := localPartBias[localPart(senderEmail)]; ok {
		return true
	}
	return automationDomains[senderDomain]
}
