// Package featuredoc owns the textual conventions shared with the issue
// tracker: item titles, metadata lines, the embedded proposal document,
// branch names and document paths. Everything that reads or writes those
// formats goes through here.
package featuredoc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	ProposalTitlePrefix = "[Proposal]"
	DevTitlePrefix      = "[Dev]"
	fallbackSlug        = "feature"
	maxSlugLen          = 40
)

var (
	featureIDLineRe  = regexp.MustCompile(`(?im)^\s*-\s*feature_id:\s*([^\s]+)\s*$`)
	proposalIDRe     = regexp.MustCompile(`(?i)^\[Proposal\]\s+([^\s]+)\s+`)
	proposalTitleRe  = regexp.MustCompile(`(?i)^\[Proposal\]\s+[^\s]+\s+(.+)$`)
	fencedMarkdownRe = regexp.MustCompile("(?i)```(?:md|markdown)?\\s*\\r?\\n([\\s\\S]*?)\\r?\\n```")
	issueNumberRe    = regexp.MustCompile(`/issues/(\d+)`)
	nonAlnumRe       = regexp.MustCompile(`[^a-z0-9]+`)
)

// ProposalTitle is the canonical review-item title.
func ProposalTitle(featureID, title string) string {
	return fmt.Sprintf("%s %s %s", ProposalTitlePrefix, featureID, title)
}

// DevTitle is the canonical tracking-item title.
func DevTitle(featureID, title string) string {
	return fmt.Sprintf("%s %s %s", DevTitlePrefix, featureID, title)
}

// FeatureIDs returns every feature id found on a metadata line, in order.
func FeatureIDs(body string) []string {
	var ids []string
	for _, m := range featureIDLineRe.FindAllStringSubmatch(body, -1) {
		ids = append(ids, strings.TrimSpace(m[1]))
	}
	return ids
}

// ParseFeatureID extracts the feature id of a review item. The first
// metadata line in the body wins; otherwise the id is taken from a
// "[Proposal] <id> <title>" title. It returns "" when neither yields one.
func ParseFeatureID(title, body string) string {
	if ids := FeatureIDs(body); len(ids) > 0 {
		return ids[0]
	}
	if m := proposalIDRe.FindStringSubmatch(strings.TrimSpace(title)); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// ParseFeatureTitle strips the "[Proposal] <id>" prefix from a review-item
// title. It falls back to the raw title, then featureID, then "feature".
func ParseFeatureTitle(title, featureID string) string {
	title = strings.TrimSpace(title)
	if m := proposalTitleRe.FindStringSubmatch(title); m != nil {
		return strings.TrimSpace(m[1])
	}
	if title != "" {
		return title
	}
	if featureID != "" {
		return featureID
	}
	return fallbackSlug
}

// ExtractProposalMarkdown returns the first fenced md/markdown block of body,
// trimmed and newline-terminated, or "" when there is none.
func ExtractProposalMarkdown(body string) string {
	m := fencedMarkdownRe.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	doc := strings.TrimSpace(m[1])
	if doc == "" {
		return ""
	}
	return doc + "\n"
}

// Slugify lowercases text, collapses non-alphanumeric runs to one hyphen,
// trims hyphens and caps the result at 40 characters.
func Slugify(text string) string {
	slug := nonAlnumRe.ReplaceAllString(strings.ToLower(text), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
	}
	return slug
}

// DevBranchName is the deterministic development branch for a feature.
func DevBranchName(featureID, title string) string {
	slug := Slugify(title)
	if slug == "" {
		slug = fallbackSlug
	}
	return fmt.Sprintf("dev/%s-%s", strings.ToLower(featureID), slug)
}

// DocPath is where the feature document is committed on the dev branch.
func DocPath(featureID string) string {
	return fmt.Sprintf("docs/feature-proposals/%s/FEATURE.md", featureID)
}

// IssueNumberFromURL parses the item number out of an issue URL.
func IssueNumberFromURL(url string) (int, bool) {
	m := issueNumberRe.FindStringSubmatch(url)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
