package quality

import (
	"github.com/newthinker/reversion/internal/core"
	"github.com/newthinker/reversion/internal/features"
)

// separableSamples returns n profit samples near the lower band in weak
// trends and n loss samples near the upper band in stronger trends.
func separableSamples(n int) []Sample {
	out := make([]Sample, 0, 2*n)
	for i := 0; i < n; i++ {
		shared := func(v features.Vector) features.Vector {
			v.BandWidth = 0.01 + 0.001*float64(i%4)
			v.Momentum = 45 + float64(i%10)
			v.MomentumRatio = 0.8 + 0.1*float64(i%3)
			v.OscillatorRatio = 1 + 0.05*float64(i%5)
			v.DayOfWeek = i % 5
			v.Hour = i % 24
			return v
		}
		out = append(out,
			Sample{
				Features: shared(features.Vector{BandPosition: 0.05 + 0.01*float64(i%5), TrendStrength: 12 + float64(i%6)}),
				Outcome:  core.OutcomeProfit,
			},
			Sample{
				Features: shared(features.Vector{BandPosition: 0.85 + 0.01*float64(i%5), TrendStrength: 32 + float64(i%6)}),
				Outcome:  core.OutcomeLoss,
			},
		)
	}
	return out
}

type constClassifier Verdict

func (c constClassifier) Predict(features.Vector) Verdict { return Verdict(c) }
