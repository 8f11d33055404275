package quality

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/newthinker/reversion/internal/core"
	"github.com/newthinker/reversion/internal/features"
)

// varSmoothing is added to every class variance, scaled by the largest
// feature variance, to keep constant features from producing zero variance.
const varSmoothing = 1e-9

// ClassStats holds the per-feature Gaussian parameters of one outcome class
type ClassStats struct {
	Count    int       `json:"count"`
	Prior    float64   `json:"prior"`
	Mean     []float64 `json:"mean"`
	Variance []float64 `json:"variance"`
}

func (c ClassStats) logLikelihood(x []float64) float64 {
	if c.Count == 0 || c.Prior <= 0 || len(c.Mean) != len(x) {
		return math.Inf(-1)
	}
	ll := math.Log(c.Prior)
	for j, xj := range x {
		v := c.Variance[j]
		d := xj - c.Mean[j]
		ll += -0.5*math.Log(2*math.Pi*v) - d*d/(2*v)
	}
	return ll
}

// NaiveBayes is a Gaussian naive Bayes classifier over feature vectors.
// It serializes to JSON and is read-only once fitted.
type NaiveBayes struct {
	Good ClassStats `json:"good"`
	Bad  ClassStats `json:"bad"`
}

// FitNaiveBayes estimates class priors and per-feature moments
func FitNaiveBayes(samples []Sample) (*NaiveBayes, error) {
	if len(samples) == 0 {
		return nil, core.Errorf(core.ErrModelUnavailable, "no samples")
	}

	var good, bad [][]float64
	all := make([][]float64, 0, len(samples))
	for _, s := range samples {
		x := s.Features.Slice()
		all = append(all, x)
		if s.Outcome == core.OutcomeProfit {
			good = append(good, x)
		} else {
			bad = append(bad, x)
		}
	}

	var maxVar float64
	for j := 0; j < features.Len; j++ {
		_, v := stat.PopMeanVariance(column(all, j), nil)
		maxVar = math.Max(maxVar, v)
	}
	eps := varSmoothing * maxVar
	if eps == 0 {
		eps = varSmoothing
	}

	return &NaiveBayes{
		Good: fitClass(good, len(samples), eps),
		Bad:  fitClass(bad, len(samples), eps),
	}, nil
}

func fitClass(rows [][]float64, total int, eps float64) ClassStats {
	cs := ClassStats{Count: len(rows)}
	if len(rows) == 0 {
		return cs
	}
	cs.Prior = float64(len(rows)) / float64(total)
	cs.Mean = make([]float64, features.Len)
	cs.Variance = make([]float64, features.Len)
	for j := 0; j < features.Len; j++ {
		m, v := stat.PopMeanVariance(column(rows, j), nil)
		cs.Mean[j] = m
		cs.Variance[j] = v + eps
	}
	return cs
}

func column(rows [][]float64, j int) []float64 {
	col := make([]float64, len(rows))
	for i, r := range rows {
		col[i] = r[j]
	}
	return col
}

// Predict returns VerdictBad only when the loss class is strictly more
// likely. A nil classifier approves.
func (nb *NaiveBayes) Predict(v features.Vector) Verdict {
	if nb == nil {
		return VerdictGood
	}
	x := v.Slice()
	if nb.Bad.logLikelihood(x) > nb.Good.logLikelihood(x) {
		return VerdictBad
	}
	return VerdictGood
}
