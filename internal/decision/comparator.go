package decision

import (
	"trend-edge-lab/internal/domain"
)

// ModelResult is one model's decision and its comparable confidence.
type ModelResult struct {
	Model      domain.ModelType
	Decision   domain.Decision
	Confidence float64
}

// Comparison is the side-by-side outcome of all models on one series.
type Comparison struct {
	Results []ModelResult
	Winner  domain.ModelType // "none" when no model signals BUY
}

// WinnerNone marks a comparison without a BUY signal.
const WinnerNone domain.ModelType = "none"

// Comparator evaluates several models on the same series.
type Comparator struct {
	models []Model
}

// NewComparator creates a comparator over models in tie-break order.
func NewComparator(models ...Model) *Comparator {
	return &Comparator{models: models}
}

// NewDefaultComparator creates the score, momentum and probability comparator.
func NewDefaultComparator(src EdgeSource) *Comparator {
	return NewComparator(NewBaselineModel(), NewMomentumModel(src), NewProbabilityModel())
}

// Compare runs every model and picks the highest-confidence BUY. Ties keep
// the earlier model.
func (c *Comparator) Compare(series *domain.BarSeries, cfg *domain.Config) Comparison {
	out := Comparison{
		Results: make([]ModelResult, 0, len(c.models)),
		Winner:  WinnerNone,
	}
	best := 0.0
	for _, m := range c.models {
		d := m.Evaluate(series, cfg)
		conf := comparableConfidence(d)
		out.Results = append(out.Results, ModelResult{
			Model:      m.Name(),
			Decision:   d,
			Confidence: conf,
		})
		if conf > best {
			best = conf
			out.Winner = m.Name()
		}
	}
	return out
}

func comparableConfidence(d domain.Decision) float64 {
	if d.Signal != domain.SignalBuy {
		return 0
	}
	switch d.Model {
	case domain.ModelScore:
		return d.Score / baselineMaxScore
	case domain.ModelProbability:
		if d.Probability == nil {
			return 0
		}
		return *d.Probability
	default:
		return d.Confidence
	}
}
