package pipeline

import (
	"featurefactory/internal/discovery"
	"featurefactory/internal/registry"
)

// Batch is the candidate set the proposal stage works on, with the
// repository position it was generated against.
type Batch struct {
	RunID      string
	BaseBranch string
	BaseSha    string
	Candidates []registry.Candidate
}

// BatchFromFeatures adapts a features.json document.
func BatchFromFeatures(f *discovery.FeatureBatch) Batch {
	if f == nil {
		return Batch{}
	}
	base := f.BaseBranch
	if base == "" {
		base = registry.DefaultBaseBranch
	}
	return Batch{
		RunID:      f.RunID,
		BaseBranch: base,
		BaseSha:    f.BaseSha,
		Candidates: f.Features,
	}
}
