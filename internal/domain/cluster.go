package domain

import (
	"sort"
	"strings"
)

// Tier is the narrowness level of a cluster (spec §3/§4.4, narrowest first).
type Tier int

const (
	TierSubjectSender Tier = iota
	TierSender
	TierDomain
)

func (t Tier) String() string {
	switch t {
	case TierSubjectSender:
		return "subject_sender"
	case TierSender:
		return "sender"
	case TierDomain:
		return "domain"
	default:
		return "unknown"
	}
}

// ClusterIdentity is the composite key every persisted structure (decisions,
// exclusions, filter dedup) must key on in full — spec §4.4/§9: a reduced
// key collides subject-specific and sender-wide clusters from the same
// sender.
type ClusterIdentity struct {
	Tier            Tier
	SenderOrDomain  string
	SubjectPattern  string // empty for Tier Sender and Tier Domain
	ExcludedSenders []string
}

// Key renders the identity as a single stable string suitable as a map key
// and as JSON-object key material (sorted excluded senders baked in).
func (id ClusterIdentity) Key() string {
	excl := append([]string(nil), id.ExcludedSenders...)
	sort.Strings(excl)
	var b strings.Builder
	b.WriteString(id.Tier.String())
	b.WriteByte('|')
	b.WriteString(id.SenderOrDomain)
	b.WriteByte('|')
	b.WriteString(id.SubjectPattern)
	b.WriteByte('|')
	b.WriteString(strings.Join(excl, ","))
	return b.String()
}

// Cluster is a proposed filter candidate: a group of messages matched by a
// single candidate predicate (spec §3).
type Cluster struct {
	Identity ClusterIdentity

	// MemberIDs are the message ids the narrowest-applicable predicate
	// represents. Disjoint across clusters within one Clusterer run
	// (spec §4.4 invariant, tested in internal/cluster).
	MemberIDs []string

	SampleSubjects []string
	SuggestedLabel string
	ArchiveHint    bool
	ExistingFilter *ServerFilter // attached by the reconciler, nil if none
}

// MessageCount is the number of messages represented by this cluster.
func (c *Cluster) MessageCount() int { return len(c.MemberIDs) }
