package discovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	ferrors "featurefactory/internal/errors"
	"featurefactory/internal/registry"
)

const artifactVersion = 1

// Artifact file names inside a run directory.
const (
	AgentInputFile  = "agent_input.json"
	AgentOutputFile = "agent_output.json"
	FeaturesFile    = "features.json"
	SummaryFile     = "FEATURE_SUMMARY.md"
	LatestFile      = "LATEST.json"
)

// RunID identifies one generation run by its UTC start time.
type RunID struct {
	Date string
	Time string
	At   time.Time
}

// NewRunID derives the run id for t.
func NewRunID(t time.Time) RunID {
	t = t.UTC()
	return RunID{Date: t.Format("2006-01-02"), Time: t.Format("150405"), At: t}
}

func (r RunID) String() string { return r.Date + "-" + r.Time }

// Dir returns the run directory under featuresRoot.
func (r RunID) Dir(featuresRoot string) string {
	return filepath.Join(featuresRoot, "runs", r.Date, r.Time)
}

// GeneratedAt formats the run time like an ISO-8601 UTC timestamp with milliseconds.
func (r RunID) GeneratedAt() string {
	return r.At.UTC().Format("2006-01-02T15:04:05.000Z")
}

// AgentOutput is the raw accepted engine batch.
type AgentOutput struct {
	Engine   string               `json:"engine"`
	Features []registry.Candidate `json:"features"`
}

// FeatureBatch is the normalized features.json document.
type FeatureBatch struct {
	Version     int                  `json:"version"`
	RunID       string               `json:"runId"`
	GeneratedAt string               `json:"generatedAt"`
	Engine      string               `json:"engine"`
	BaseBranch  string               `json:"baseBranch"`
	BaseSha     string               `json:"baseSha"`
	Features    []registry.Candidate `json:"features"`
}

// Latest points at the most recent run's artifacts. Paths are relative to
// the repository root and use forward slashes.
type Latest struct {
	Version      int    `json:"version"`
	RunID        string `json:"runId"`
	GeneratedAt  string `json:"generatedAt"`
	Engine       string `json:"engine"`
	BaseBranch   string `json:"baseBranch"`
	BaseSha      string `json:"baseSha"`
	RunDir       string `json:"runDir"`
	FeaturesPath string `json:"featuresPath"`
	SummaryPath  string `json:"summaryPath"`
}

// WriteJSON writes v as indented JSON with a trailing newline, creating parent directories.
func WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	return writeFile(path, append(data, '\n'))
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// RenderSummary renders FEATURE_SUMMARY.md for a batch.
func RenderSummary(id RunID, batch *FeatureBatch) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Feature Proposal Summary (%s %s UTC)\n\n", id.Date, id.Time)
	fmt.Fprintf(&b, "- run_id: %s\n", batch.RunID)
	fmt.Fprintf(&b, "- generated_at: %s\n", batch.GeneratedAt)
	fmt.Fprintf(&b, "- engine: %s\n", batch.Engine)
	fmt.Fprintf(&b, "- base_branch: %s\n", batch.BaseBranch)
	fmt.Fprintf(&b, "- base_sha: %s\n", batch.BaseSha)
	fmt.Fprintf(&b, "- feature_count: %d\n\n", len(batch.Features))
	b.WriteString("## Features\n\n")
	for _, f := range batch.Features {
		fmt.Fprintf(&b, "### %s - %s\n", f.FeatureID, f.Title)
		fmt.Fprintf(&b, "- priority: %s\n", f.Priority)
		fmt.Fprintf(&b, "- source_refs: %s\n", strings.Join(f.SourceRefs, ", "))
		fmt.Fprintf(&b, "- rationale: %s\n", f.Rationale)
		b.WriteString("- acceptance_criteria:\n")
		for _, c := range f.AcceptanceCriteria {
			fmt.Fprintf(&b, "  - %s\n", c)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// LatestPath returns the LATEST.json location under featuresRoot.
func LatestPath(featuresRoot string) string {
	return filepath.Join(featuresRoot, LatestFile)
}

// LoadLatest reads the LATEST.json pointer. A missing file is reported with
// os.ErrNotExist in the chain.
func LoadLatest(featuresRoot string) (*Latest, error) {
	path := LatestPath(featuresRoot)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s not found, run propose generation first: %w", LatestFile, err)
	}
	var latest Latest
	if err := json.Unmarshal(data, &latest); err != nil {
		return nil, ferrors.NewMalformedDataError(LatestFile, err.Error())
	}
	if latest.FeaturesPath == "" {
		return nil, ferrors.NewMalformedDataError(LatestFile, "featuresPath missing")
	}
	return &latest, nil
}

// LoadBatch reads the features.json a Latest pointer refers to.
func LoadBatch(root string, latest *Latest) (*FeatureBatch, error) {
	path := filepath.Join(root, filepath.FromSlash(latest.FeaturesPath))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read features file: %w", err)
	}
	var batch FeatureBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, ferrors.NewMalformedDataError(latest.FeaturesPath, err.Error())
	}
	return &batch, nil
}

func relSlash(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
