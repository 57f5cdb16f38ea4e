package registry

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	apperrors "featurefactory/internal/errors"
)

// rawRegistry is the lenient on-disk shape. Every field is optional and
// legacy fields (proposalBranch, proposalPr*) are simply not decoded.
type rawRegistry struct {
	Version   int         `json:"version"`
	UpdatedAt string      `json:"updatedAt"`
	Items     []rawRecord `json:"items"`
}

type rawRecord struct {
	FeatureID           string     `json:"featureId"`
	Title               string     `json:"title"`
	Priority            string     `json:"priority"`
	Rationale           string     `json:"rationale"`
	SourceRefs          stringList `json:"sourceRefs"`
	AcceptanceCriteria  stringList `json:"acceptanceCriteria"`
	BaseBranch          string     `json:"baseBranch"`
	BaseSha             string     `json:"baseSha"`
	ProposalIssueNumber flexInt    `json:"proposalIssueNumber"`
	ProposalIssueURL    string     `json:"proposalIssueUrl"`
	ProposalIssueState  string     `json:"proposalIssueState"`
	ApprovalStatus      string     `json:"approvalStatus"`
	DevBranch           string     `json:"devBranch"`
	Status              string     `json:"status"`
	FirstSeenAt         string     `json:"firstSeenAt"`
	LastSeenAt          string     `json:"lastSeenAt"`
}

// stringList accepts an array of strings, a single string, or null.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}
	if data[0] == '"' {
		var one string
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		if one != "" {
			*s = stringList{one}
		}
		return nil
	}
	var many []interface{}
	if err := json.Unmarshal(data, &many); err != nil {
		*s = nil
		return nil
	}
	out := make(stringList, 0, len(many))
	for _, v := range many {
		if str, ok := v.(string); ok {
			out = append(out, str)
		}
	}
	*s = out
	return nil
}

// flexInt accepts a number, a numeric string, or null.
type flexInt struct {
	v *int
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	text := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if text == "" || text == "null" {
		f.v = nil
		return nil
	}
	n, err := strconv.Atoi(text)
	if err != nil || n <= 0 {
		f.v = nil
		return nil
	}
	f.v = &n
	return nil
}

// Decode parses a registry document and normalizes it. Empty input yields an
// empty registry.
func Decode(data []byte) (*Registry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return New(), nil
	}
	var raw rawRegistry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &apperrors.MalformedDataError{Subject: "registry", Reason: err.Error()}
	}

	reg := &Registry{
		Version:   raw.Version,
		UpdatedAt: parseTime(raw.UpdatedAt),
		Items:     make([]FeatureRecord, 0, len(raw.Items)),
	}
	for _, item := range raw.Items {
		reg.Items = append(reg.Items, item.migrate())
	}
	return Normalize(reg), nil
}

// decodeRecord parses a single stored record, as the SQLite backend keeps
// one JSON document per row.
func decodeRecord(data []byte) (FeatureRecord, error) {
	var raw rawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return FeatureRecord{}, &apperrors.MalformedDataError{Subject: "registry record", Reason: err.Error()}
	}
	return normalizeRecord(raw.migrate()), nil
}

// Encode renders the registry as indented JSON with a trailing newline.
func Encode(reg *Registry) ([]byte, error) {
	data, err := json.MarshalIndent(Normalize(reg), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (r rawRecord) migrate() FeatureRecord {
	return FeatureRecord{
		FeatureID:           strings.TrimSpace(r.FeatureID),
		Title:               r.Title,
		Priority:            r.Priority,
		Rationale:           r.Rationale,
		SourceRefs:          []string(r.SourceRefs),
		AcceptanceCriteria:  []string(r.AcceptanceCriteria),
		BaseBranch:          r.BaseBranch,
		BaseSha:             r.BaseSha,
		ProposalIssueNumber: r.ProposalIssueNumber.v,
		ProposalIssueURL:    r.ProposalIssueURL,
		ProposalIssueState:  IssueState(strings.ToLower(strings.TrimSpace(r.ProposalIssueState))),
		ApprovalStatus:      ApprovalStatus(strings.ToLower(strings.TrimSpace(r.ApprovalStatus))),
		DevBranch:           r.DevBranch,
		Status:              Status(strings.ToLower(strings.TrimSpace(r.Status))),
		FirstSeenAt:         parseTime(r.FirstSeenAt),
		LastSeenAt:          parseTime(r.LastSeenAt),
	}
}

// Normalize returns a copy of reg with current-version defaults applied,
// records without an id dropped, duplicate ids collapsed (last wins) and
// items sorted by FeatureID. It never fails.
func Normalize(reg *Registry) *Registry {
	out := New()
	if reg == nil {
		return out
	}
	out.UpdatedAt = reg.UpdatedAt

	index := make(map[string]int, len(reg.Items))
	for _, item := range reg.Items {
		rec := normalizeRecord(item)
		if rec.FeatureID == "" {
			continue
		}
		if i, ok := index[rec.FeatureID]; ok {
			out.Items[i] = rec
			continue
		}
		index[rec.FeatureID] = len(out.Items)
		out.Items = append(out.Items, rec)
	}
	out.sort()
	return out
}

func normalizeRecord(rec FeatureRecord) FeatureRecord {
	rec.FeatureID = strings.TrimSpace(rec.FeatureID)
	rec.SourceRefs = append([]string{}, rec.SourceRefs...)
	rec.AcceptanceCriteria = append([]string{}, rec.AcceptanceCriteria...)
	if rec.BaseBranch == "" {
		rec.BaseBranch = DefaultBaseBranch
	}
	if rec.ProposalIssueState != IssueOpen && rec.ProposalIssueState != IssueClosed {
		rec.ProposalIssueState = IssueOpen
	}
	if !rec.ApprovalStatus.valid() {
		rec.ApprovalStatus = ApprovalPending
	}
	if !rec.Status.valid() {
		switch {
		case rec.DevBranch != "":
			rec.Status = StatusPromoted
		case rec.ProposalIssueNumber != nil:
			rec.Status = StatusIssueOpen
		default:
			rec.Status = StatusDiscovered
		}
	}
	if rec.ProposalIssueNumber != nil {
		n := *rec.ProposalIssueNumber
		rec.ProposalIssueNumber = &n
	}
	if rec.LastSeenAt.IsZero() {
		rec.LastSeenAt = rec.FirstSeenAt
	}
	return rec
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z07:00", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
