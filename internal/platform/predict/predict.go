// Package predict defines the fibrosis prediction collaborator. The core
// treats predictor output as untrusted; range validation happens in the
// diagnostic workflow, not here.
package predict

import (
	"context"
	"math/rand"
)

// Result is a stage classification with the model's reported confidence.
type Result struct {
	Stage      int     `json:"stage"`
	Confidence float64 `json:"confidence"`
}

// Predictor classifies a stored image, addressed by locator.
type Predictor interface {
	Predict(ctx context.Context, locator string) (Result, error)
}

// Simulated is a stand-in predictor returning a random stage in [0,4] and a
// confidence in [0.60,0.95). A real model implementation replaces it behind
// the same interface.
type Simulated struct{}

func (Simulated) Predict(_ context.Context, _ string) (Result, error) {
	return Result{
		Stage:      rand.Intn(5),
		Confidence: 0.60 + rand.Float64()*0.35,
	}, nil
}
