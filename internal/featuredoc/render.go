package featuredoc

import (
	"strings"

	"featurefactory/internal/registry"
)

// RenderFeatureDoc renders the proposal document embedded in a review item
// and later committed to the dev branch.
func RenderFeatureDoc(f registry.Candidate, baseBranch, baseSha string) string {
	var b lines
	b.add("# " + f.FeatureID + " - " + f.Title)
	b.add("")
	b.add("- base_branch: " + baseBranch)
	b.add("- base_sha: " + baseSha)
	b.add("- priority: " + f.Priority)
	b.add("- source_refs: " + strings.Join(f.SourceRefs, ", "))
	b.add("")
	b.add("## Rationale")
	b.add("")
	b.add(f.Rationale)
	b.add("")
	b.add("## Acceptance Criteria")
	b.add("")
	for _, c := range f.AcceptanceCriteria {
		b.add("- [ ] " + c)
	}
	b.add("")
	b.add("## Approval")
	b.add("")
	b.add("- This proposal is approved via GitHub Issue labels.")
	b.add("- Add label `approved` to approve, `rejected` to reject.")
	return b.String() + "\n"
}

// ProposalBody renders the review-item body: a metadata block followed by
// the fenced proposal document.
func ProposalBody(f registry.Candidate, baseBranch, baseSha string) string {
	var b lines
	b.add("Feature proposal approval item.")
	b.add("")
	b.add("- feature_id: " + f.FeatureID)
	b.add("- base_branch: " + baseBranch)
	b.add("- base_sha: " + baseSha)
	b.add("")
	b.add("Approval action:")
	b.add("- Add label `approved` to approve.")
	b.add("- Add label `rejected` to reject.")
	b.add("")
	b.add("Proposal markdown:")
	b.add("")
	b.add("```md")
	b.add(strings.TrimSpace(RenderFeatureDoc(f, baseBranch, baseSha)))
	b.add("```")
	return b.String()
}

// FallbackDoc is committed when an approved item carries no proposal block.
func FallbackDoc(featureID, title string) string {
	var b lines
	b.add("# " + featureID + " - " + title)
	b.add("")
	b.add("## Rationale")
	b.add("")
	b.add("Generated from approved issue because proposal markdown block was missing.")
	b.add("")
	b.add("## Acceptance Criteria")
	b.add("")
	b.add("- [ ] Define detailed acceptance criteria in development planning.")
	return b.String() + "\n"
}

// Tracking describes the tracking item created on promotion.
type Tracking struct {
	FeatureID     string
	FeatureTitle  string
	ProposalIssue int
	ProposalURL   string
	DevBranch     string
	DocPath       string
}

// TrackingBody renders the tracking-item body.
func TrackingBody(t Tracking) string {
	var b lines
	b.add("Development tracking issue.")
	b.add("")
	b.add("- feature_id: " + t.FeatureID)
	b.add("- feature_title: " + t.FeatureTitle)
	b.addf("- proposal_issue: #%d", t.ProposalIssue)
	b.add("- proposal_url: " + t.ProposalURL)
	b.add("- dev_branch: " + t.DevBranch)
	b.add("- feature_doc: `" + t.DocPath + "`")
	b.add("")
	b.add("## Suggested Checklist")
	b.add("")
	b.add("- [ ] Confirm implementation scope from FEATURE.md")
	b.add("- [ ] Break down tasks")
	b.add("- [ ] Implement and self-test")
	b.add("- [ ] Open PR from dev branch")
	return b.String()
}

// MatchesTracking reports whether a feature-dev item belongs to featureID,
// either through its metadata line or its canonical title.
func MatchesTracking(title, body, featureID, featureTitle string) bool {
	for _, id := range FeatureIDs(body) {
		if strings.EqualFold(id, featureID) {
			return true
		}
	}
	return strings.EqualFold(strings.TrimSpace(title), DevTitle(featureID, featureTitle))
}
