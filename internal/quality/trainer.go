package quality

import (
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/reversion/internal/core"
	"github.com/newthinker/reversion/internal/features"
	"github.com/newthinker/reversion/internal/logger"
)

// ModelKind identifies the classifier family stored in a Model
const ModelKind = "gaussian_naive_bayes"

// TrainerConfig controls training
type TrainerConfig struct {
	MinSamples   int     `mapstructure:"min_trades" yaml:"min_trades"`
	TestFraction float64 `mapstructure:"test_fraction" yaml:"test_fraction"`
	Seed         int64   `mapstructure:"seed" yaml:"seed"`
}

// DefaultTrainerConfig returns 20 minimum samples, a 20% holdout and seed 42
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{MinSamples: 20, TestFraction: 0.2, Seed: 42}
}

// Report summarizes a training run
type Report struct {
	Samples   int     `json:"samples"`
	TrainSize int     `json:"train_size"`
	TestSize  int     `json:"test_size"`
	Accuracy  float64 `json:"accuracy"` // on the holdout; 0 without one
}

// Model is a trained classifier with its provenance
type Model struct {
	Kind      string      `json:"kind"`
	Version   string      `json:"version"`
	TrainedAt time.Time   `json:"trained_at"`
	Report    Report      `json:"report"`
	Bayes     *NaiveBayes `json:"naive_bayes"`
}

// Predict delegates to the fitted classifier; an empty model approves.
func (m *Model) Predict(v features.Vector) Verdict {
	if m == nil || m.Bayes == nil {
		return VerdictGood
	}
	return m.Bayes.Predict(v)
}

// Trainer fits models from labeled trades
type Trainer struct {
	cfg    TrainerConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewTrainer creates a trainer. Zero config fields fall back to defaults.
func NewTrainer(cfg TrainerConfig, log *zap.Logger) *Trainer {
	def := DefaultTrainerConfig()
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = def.MinSamples
	}
	if cfg.TestFraction < 0 || cfg.TestFraction >= 1 {
		cfg.TestFraction = def.TestFraction
	}
	return &Trainer{
		cfg:    cfg,
		logger: logger.Component(log, "quality"),
		now:    time.Now,
	}
}

// Train shuffles samples with the configured seed, holds out TestFraction
// for accuracy, and fits on the rest. Fewer than MinSamples samples yields
// ErrModelUnavailable.
func (t *Trainer) Train(samples []Sample) (*Model, error) {
	if len(samples) < t.cfg.MinSamples {
		return nil, core.Errorf(core.ErrModelUnavailable, "%d samples, need %d", len(samples), t.cfg.MinSamples)
	}

	shuffled := make([]Sample, len(samples))
	copy(shuffled, samples)
	rng := rand.New(rand.NewSource(t.cfg.Seed))
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	testSize := int(math.Round(float64(len(shuffled)) * t.cfg.TestFraction))
	train, test := shuffled[testSize:], shuffled[:testSize]

	nb, err := FitNaiveBayes(train)
	if err != nil {
		return nil, err
	}

	report := Report{Samples: len(samples), TrainSize: len(train), TestSize: len(test)}
	if len(test) > 0 {
		correct := 0
		for _, s := range test {
			want := VerdictBad
			if s.Outcome == core.OutcomeProfit {
				want = VerdictGood
			}
			if nb.Predict(s.Features) == want {
				correct++
			}
		}
		report.Accuracy = float64(correct) / float64(len(test))
	}

	if nb.Good.Count == 0 || nb.Bad.Count == 0 {
		t.logger.Warn("training set holds a single outcome class",
			zap.Int("profit", nb.Good.Count),
			zap.Int("loss", nb.Bad.Count),
		)
	}

	trainedAt := t.now().UTC()
	t.logger.Info("quality model trained",
		zap.Int("samples", report.Samples),
		zap.Int("train", report.TrainSize),
		zap.Int("test", report.TestSize),
		zap.Float64("accuracy", report.Accuracy),
	)

	return &Model{
		Kind:      ModelKind,
		Version:   trainedAt.Format(versionLayout),
		TrainedAt: trainedAt,
		Report:    report,
		Bayes:     nb,
	}, nil
}

// NeedsRetrain reports whether m is absent or older than interval at now
func NeedsRetrain(m *Model, now time.Time, interval time.Duration) bool {
	if m == nil || m.TrainedAt.IsZero() {
		return true
	}
	return now.Sub(m.TrainedAt) >= interval
}
