package discovery

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	ferrors "featurefactory/internal/errors"
	"featurefactory/internal/registry"
)

const (
	defaultPriority  = "P2"
	strictJSONNotice = "Return exactly ONE JSON object. Ensure it is valid JSON: use double quotes for all keys and string values, and escape any special characters."
)

var (
	leadingFence  = regexp.MustCompile("^```(?:json)?\\s*")
	trailingFence = regexp.MustCompile("\\s*```$")
)

// BuildPrompt appends the engine input as a fenced JSON block to the template.
func BuildPrompt(template string, input interface{}) (string, error) {
	data, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode engine input: %w", err)
	}
	parts := []string{
		strings.TrimSpace(template),
		"",
		"Input JSON:",
		"```json",
		string(data),
		"```",
		"",
		strictJSONNotice,
	}
	return strings.Join(parts, "\n"), nil
}

// ExtractJSONObject pulls the JSON object out of raw engine text. Markdown
// fences are stripped; if that still does not parse, the slice from the first
// '{' to the last '}' is tried.
func ExtractJSONObject(text string) (json.RawMessage, error) {
	content := strings.TrimSpace(text)
	if content == "" {
		return nil, ferrors.NewMalformedDataError("engine output", "empty output from engine")
	}

	content = leadingFence.ReplaceAllString(content, "")
	content = strings.TrimSpace(trailingFence.ReplaceAllString(content, ""))
	if json.Valid([]byte(content)) {
		return json.RawMessage(content), nil
	}

	first := strings.Index(content, "{")
	last := strings.LastIndex(content, "}")
	if first != -1 && last > first {
		slice := content[first : last+1]
		if json.Valid([]byte(slice)) {
			return json.RawMessage(slice), nil
		}
	}
	return nil, ferrors.NewMalformedDataError("engine output", "engine output contains invalid JSON")
}

type engineOutput struct {
	Features *[]rawCandidate `json:"features"`
}

type rawCandidate struct {
	FeatureID          string          `json:"featureId"`
	Title              string          `json:"title"`
	Priority           string          `json:"priority"`
	Rationale          string          `json:"rationale"`
	SourceRefs         json.RawMessage `json:"sourceRefs"`
	AcceptanceCriteria json.RawMessage `json:"acceptanceCriteria"`
}

// ParseCandidates validates an engine's JSON object. Any candidate without a
// featureId or title, or whose featureId contains whitespace, rejects the
// whole batch.
func ParseCandidates(raw json.RawMessage) ([]registry.Candidate, error) {
	var out engineOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, ferrors.NewMalformedDataError("engine output", err.Error())
	}
	if out.Features == nil {
		return nil, ferrors.NewMalformedDataError("engine output", "features array required")
	}

	candidates := make([]registry.Candidate, 0, len(*out.Features))
	for i, f := range *out.Features {
		id := strings.TrimSpace(f.FeatureID)
		title := strings.TrimSpace(f.Title)
		if id == "" || title == "" {
			return nil, ferrors.NewMalformedDataError(
				fmt.Sprintf("engine output feature[%d]", i), "featureId/title required")
		}
		if !registry.ValidFeatureID(id) {
			return nil, ferrors.NewMalformedDataError(
				fmt.Sprintf("engine output feature[%d]", i), fmt.Sprintf("featureId %q must not contain whitespace", id))
		}
		priority := strings.TrimSpace(f.Priority)
		if priority == "" {
			priority = defaultPriority
		}
		candidates = append(candidates, registry.Candidate{
			FeatureID:          id,
			Title:              title,
			Priority:           priority,
			Rationale:          strings.TrimSpace(f.Rationale),
			SourceRefs:         stringArray(f.SourceRefs),
			AcceptanceCriteria: stringArray(f.AcceptanceCriteria),
		})
	}
	return candidates, nil
}

// stringArray decodes a JSON string array; anything else yields an empty list.
func stringArray(raw json.RawMessage) []string {
	var list []string
	if len(raw) == 0 || json.Unmarshal(raw, &list) != nil || list == nil {
		return []string{}
	}
	return list
}
