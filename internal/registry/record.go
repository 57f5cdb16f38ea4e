// Package registry persists what the pipeline believes about each discovered
// feature between runs.
package registry

import (
	"sort"
	"strings"
	"time"
	"unicode"
)

// SchemaVersion is the current on-disk registry version.
const SchemaVersion = 1

// DefaultBaseBranch is recorded on new records when the run did not name one.
const DefaultBaseBranch = "main"

// ValidFeatureID reports whether id can round-trip through item titles and
// "- feature_id:" metadata lines: non-empty and free of whitespace.
func ValidFeatureID(id string) bool {
	return id != "" && strings.IndexFunc(id, unicode.IsSpace) < 0
}

// Status is the coarse lifecycle stage of a feature.
type Status string

const (
	StatusDiscovered Status = "discovered"
	StatusIssueOpen  Status = "issue_open"
	StatusPromoted   Status = "promoted"
)

func (s Status) rank() int {
	switch s {
	case StatusIssueOpen:
		return 1
	case StatusPromoted:
		return 2
	default:
		return 0
	}
}

func (s Status) valid() bool {
	return s == StatusDiscovered || s == StatusIssueOpen || s == StatusPromoted
}

// ApprovalStatus mirrors the review decision last observed for a feature.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

func (a ApprovalStatus) valid() bool {
	return a == ApprovalPending || a == ApprovalApproved || a == ApprovalRejected
}

// IssueState is the open/closed state of the linked review item.
type IssueState string

const (
	IssueOpen   IssueState = "open"
	IssueClosed IssueState = "closed"
)

// Candidate is a raw feature suggestion produced by a generation engine.
type Candidate struct {
	FeatureID          string   `json:"featureId"`
	Title              string   `json:"title"`
	Priority           string   `json:"priority"`
	Rationale          string   `json:"rationale,omitempty"`
	SourceRefs         []string `json:"sourceRefs"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
}

// RunMeta describes the generation run that produced a candidate batch.
type RunMeta struct {
	GeneratedAt time.Time
	BaseBranch  string
	BaseSha     string
}

// FeatureRecord is the registry entry for one feature, keyed by FeatureID.
type FeatureRecord struct {
	FeatureID          string   `json:"featureId"`
	Title              string   `json:"title"`
	Priority           string   `json:"priority"`
	Rationale          string   `json:"rationale,omitempty"`
	SourceRefs         []string `json:"sourceRefs"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`

	BaseBranch string `json:"baseBranch"`
	BaseSha    string `json:"baseSha"`

	ProposalIssueNumber *int           `json:"proposalIssueNumber"`
	ProposalIssueURL    string         `json:"proposalIssueUrl"`
	ProposalIssueState  IssueState     `json:"proposalIssueState"`
	ApprovalStatus      ApprovalStatus `json:"approvalStatus"`
	DevBranch           string         `json:"devBranch"`
	Status              Status         `json:"status"`

	FirstSeenAt time.Time `json:"firstSeenAt"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}

// HasOpenIssue reports whether the record is linked to an open review item.
func (r *FeatureRecord) HasOpenIssue() bool {
	return r.ProposalIssueNumber != nil && r.ProposalIssueState == IssueOpen
}

// Advance moves the record to status s unless that would move it backward.
func (r *FeatureRecord) Advance(s Status) {
	if s.rank() > r.Status.rank() {
		r.Status = s
	}
}

// LinkIssue records the open review item for this feature.
func (r *FeatureRecord) LinkIssue(number *int, url string, at time.Time) {
	r.ProposalIssueNumber = number
	r.ProposalIssueURL = url
	r.ProposalIssueState = IssueOpen
	r.ApprovalStatus = ApprovalPending
	r.Advance(StatusIssueOpen)
	r.LastSeenAt = at
}

// Registry is the whole persisted document.
type Registry struct {
	Version   int             `json:"version"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Items     []FeatureRecord `json:"items"`
}

// New returns an empty registry at the current schema version.
func New() *Registry {
	return &Registry{Version: SchemaVersion, Items: []FeatureRecord{}}
}

// Get returns the record for featureID. The pointer aliases the registry's
// storage and stays valid until the next Merge.
func (r *Registry) Get(featureID string) (*FeatureRecord, bool) {
	for i := range r.Items {
		if r.Items[i].FeatureID == featureID {
			return &r.Items[i], true
		}
	}
	return nil, false
}

// Merge folds a candidate batch into the registry. Existing records only get
// their descriptive fields and LastSeenAt refreshed; tracker linkage, base
// position and status are left alone.
func (r *Registry) Merge(candidates []Candidate, meta RunMeta) {
	baseBranch := meta.BaseBranch
	if baseBranch == "" {
		baseBranch = DefaultBaseBranch
	}

	for _, c := range candidates {
		id := strings.TrimSpace(c.FeatureID)
		if !ValidFeatureID(id) {
			continue
		}
		if existing, ok := r.Get(id); ok {
			existing.Title = c.Title
			existing.Priority = c.Priority
			existing.Rationale = c.Rationale
			existing.SourceRefs = nonNil(c.SourceRefs)
			existing.AcceptanceCriteria = nonNil(c.AcceptanceCriteria)
			existing.LastSeenAt = meta.GeneratedAt
			continue
		}
		r.Items = append(r.Items, FeatureRecord{
			FeatureID:          id,
			Title:              c.Title,
			Priority:           c.Priority,
			Rationale:          c.Rationale,
			SourceRefs:         nonNil(c.SourceRefs),
			AcceptanceCriteria: nonNil(c.AcceptanceCriteria),
			BaseBranch:         baseBranch,
			BaseSha:            meta.BaseSha,
			ProposalIssueState: IssueOpen,
			ApprovalStatus:     ApprovalPending,
			Status:             StatusDiscovered,
			FirstSeenAt:        meta.GeneratedAt,
			LastSeenAt:         meta.GeneratedAt,
		})
	}
	r.sort()
}

func (r *Registry) sort() {
	sort.SliceStable(r.Items, func(i, j int) bool {
		return r.Items[i].FeatureID < r.Items[j].FeatureID
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
