// Package quality approves or rejects detected signals with a classifier
// trained on past trade outcomes.
package quality

import (
	"github.com/newthinker/reversion/internal/core"
	"github.com/newthinker/reversion/internal/features"
)

// Verdict is the filter decision for a signal
type Verdict string

const (
	VerdictGood Verdict = "good"
	VerdictBad  Verdict = "bad"
)

// Classifier predicts whether a signal with the given features is worth taking
type Classifier interface {
	Predict(v features.Vector) Verdict
}

// Approve runs c on v. A nil classifier approves everything.
func Approve(c Classifier, v features.Vector) Verdict {
	if c == nil {
		return VerdictGood
	}
	return c.Predict(v)
}

// Sample is one labeled trade used for training
type Sample struct {
	Features features.Vector `json:"features"`
	Outcome  core.Outcome    `json:"outcome"`
}
