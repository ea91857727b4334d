// Package decision implements the entry models. Each model reads a bar series
// and the run configuration and returns a domain.Decision; missing history is
// reported as a HOLD with a reason code, never as an error.
package decision

import (
	"errors"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/edge"
)

// Model produces a decision from bar history.
type Model interface {
	// Evaluate scores the last bar of series. Implementations are pure:
	// the same series and config always yield the same decision.
	Evaluate(series *domain.BarSeries, cfg *domain.Config) domain.Decision

	// Name returns the model identifier.
	Name() domain.ModelType
}

// EdgeSource exposes rolling trade statistics to the momentum model.
type EdgeSource interface {
	Snapshot() edge.Snapshot
}

// Factory errors
var (
	ErrUnknownModel = errors.New("unknown decision model")
)

// Options carries the collaborators a model may need.
type Options struct {
	Edge EdgeSource // optional; nil means no recorded trades
}

// FromType creates the model identified by t.
func FromType(t domain.ModelType, opts Options) (Model, error) {
	switch t {
	case domain.ModelScore, "":
		return NewBaselineModel(), nil
	case domain.ModelMomentum:
		return NewMomentumModel(opts.Edge), nil
	case domain.ModelProbability:
		return NewProbabilityModel(), nil
	default:
		return nil, ErrUnknownModel
	}
}

// indicatorSet holds series shared by several models.
type indicatorSet struct {
	closes, highs, lows, opens, volumes []float64
}

func newIndicatorSet(series *domain.BarSeries) indicatorSet {
	return indicatorSet{
		closes:  series.Closes(),
		highs:   series.Highs(),
		lows:    series.Lows(),
		opens:   series.Opens(),
		volumes: series.Volumes(),
	}
}

func holdFor(model domain.ModelType, series *domain.BarSeries, reason string) domain.Decision {
	if series == nil {
		return domain.Hold(model, "", reason)
	}
	d := domain.Hold(model, series.Symbol, reason)
	d.Interval = series.Interval
	if last, ok := series.Last(); ok {
		d.Last = last.Close
		d.TimestampMs = last.TimestampMs
	}
	return d
}
