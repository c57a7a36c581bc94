// Package learn adapts scorer weights and decision thresholds from user
// feedback on prior decisions.
//
// The learner acts only after a minimum sample size accumulates, moves
// parameters by fixed bounded steps, and persists every change through the
// parameter store immediately. It holds no cache: the scorer and decision
// engine read parameters fresh on each call, so a write here is live on
// their next invocation.
package learn

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/engramd/internal/decide"
	"github.com/fyrsmithlabs/engramd/internal/logging"
	"github.com/fyrsmithlabs/engramd/internal/score"
	"github.com/fyrsmithlabs/engramd/internal/store"
)

const (
	// minFeedbackSamples gates any adjustment at all.
	minFeedbackSamples = 10

	// weightStep is the fixed weight nudge: a 5% learning rate damped by
	// half.
	weightStep = 0.05 * 0.5

	weightMin = 0.1
	weightMax = 0.5

	// thresholdStep moves a threshold by 5 points per adjustment.
	thresholdStep = 5.0

	thresholdMin = 20.0
	thresholdMax = 95.0

	// minProcessSamples gates per-process-type threshold movement.
	minProcessSamples = 5

	lowAcceptanceRate  = 0.5
	highAcceptanceRate = 0.9
)

// Parameter names as stored in learning_parameters.
const (
	paramWeightCodeSignificance   = "weight_code_significance"
	paramWeightProblemComplexity  = "weight_problem_complexity"
	paramWeightSolutionImportance = "weight_solution_importance"
	paramWeightReusability        = "weight_reusability"
	paramThresholdHigh            = "threshold_high"
	paramThresholdMedium          = "threshold_medium"
	paramThresholdLow             = "threshold_low"
)

// ThresholdChange records one threshold movement for the report.
type ThresholdChange struct {
	ProcessType    string  `json:"process_type"`
	AcceptanceRate float64 `json:"acceptance_rate"`
	Samples        int     `json:"samples"`
	From           float64 `json:"from"`
	To             float64 `json:"to"`
}

// Report summarizes one learner pass.
type Report struct {
	Samples          int               `json:"samples"`
	Applied          bool              `json:"applied"`
	WeightsAdjusted  bool              `json:"weights_adjusted"`
	WeightDirection  string            `json:"weight_direction,omitempty"`
	Weights          score.Weights     `json:"weights"`
	ThresholdChanges []ThresholdChange `json:"threshold_changes,omitempty"`
}

// Learner reads the feedback log and tunes stored parameters.
type Learner struct {
	store *store.Store
	log   *logging.Logger
}

// New creates a learner over the given store.
func New(st *store.Store, log *logging.Logger) *Learner {
	if log == nil {
		log = logging.NewNop()
	}
	return &Learner{store: st, log: log}
}

// Weights reads the current scorer weights from the parameter store,
// falling back to the documented defaults for any missing parameter.
func (l *Learner) Weights(ctx context.Context) (score.Weights, error) {
	w := score.DefaultWeights()
	for _, bind := range []struct {
		name string
		dst  *float64
	}{
		{paramWeightCodeSignificance, &w.CodeSignificance},
		{paramWeightProblemComplexity, &w.ProblemComplexity},
		{paramWeightSolutionImportance, &w.SolutionImportance},
		{paramWeightReusability, &w.Reusability},
	} {
		p, err := l.store.GetParameter(ctx, bind.name)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return w, fmt.Errorf("reading %s: %w", bind.name, err)
		}
		*bind.dst = p.Value
	}
	return w, nil
}

// Thresholds reads the current decision thresholds from the parameter
// store, falling back to the documented defaults for any missing one.
func (l *Learner) Thresholds(ctx context.Context) (decide.Thresholds, error) {
	th := decide.DefaultThresholds()
	for _, bind := range []struct {
		name string
		dst  *float64
	}{
		{paramThresholdHigh, &th.High},
		{paramThresholdMedium, &th.Medium},
		{paramThresholdLow, &th.Low},
	} {
		p, err := l.store.GetParameter(ctx, bind.name)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return th, fmt.Errorf("reading %s: %w", bind.name, err)
		}
		*bind.dst = p.Value
	}
	return th, nil
}

// Process runs one learner pass over the accumulated feedback log.
// Below the minimum sample size it is a no-op.
func (l *Learner) Process(ctx context.Context) (*Report, error) {
	feedback, err := l.store.ListFeedback(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("listing feedback: %w", err)
	}

	report := &Report{Samples: len(feedback)}
	if len(feedback) < minFeedbackSamples {
		l.log.Debug(ctx, "feedback below minimum sample size, skipping",
			zap.Int("samples", len(feedback)),
			zap.Int("minimum", minFeedbackSamples))
		weights, werr := l.Weights(ctx)
		if werr != nil {
			return nil, werr
		}
		report.Weights = weights
		return report, nil
	}
	report.Applied = true

	thresholds, err := l.Thresholds(ctx)
	if err != nil {
		return nil, err
	}

	if err := l.adjustWeights(ctx, feedback, thresholds, report); err != nil {
		return nil, err
	}
	if err := l.adjustThresholds(ctx, feedback, thresholds, report); err != nil {
		return nil, err
	}
	return report, nil
}

// adjustWeights nudges all weights one damped step when the feedback batch
// shows a dominant rejected-high or accepted-low pattern, then
// renormalizes so the set sums to 1 with each weight inside its bounds.
func (l *Learner) adjustWeights(ctx context.Context, feedback []*store.UserFeedback, th decide.Thresholds, report *Report) error {
	var rejectedHigh, acceptedLow int
	for _, f := range feedback {
		switch {
		case f.Action == store.FeedbackReject && f.Score >= th.High:
			rejectedHigh++
		case f.Action != store.FeedbackReject && f.Score > 0 && f.Score < th.Medium:
			acceptedLow++
		}
	}

	weights, err := l.Weights(ctx)
	if err != nil {
		return err
	}

	var step float64
	switch {
	case rejectedHigh > acceptedLow:
		step = -weightStep
		report.WeightDirection = "down"
	case acceptedLow > rejectedHigh:
		step = weightStep
		report.WeightDirection = "up"
	default:
		report.Weights = weights
		return nil
	}

	values := []float64{
		weights.CodeSignificance + step,
		weights.ProblemComplexity + step,
		weights.SolutionImportance + step,
		weights.Reusability + step,
	}
	normalizeWeights(values)

	weights = score.Weights{
		CodeSignificance:   values[0],
		ProblemComplexity:  values[1],
		SolutionImportance: values[2],
		Reusability:        values[3],
	}

	reason := fmt.Sprintf("feedback: %d rejected-high, %d accepted-low over %d samples",
		rejectedHigh, acceptedLow, len(feedback))
	for name, value := range map[string]float64{
		paramWeightCodeSignificance:   weights.CodeSignificance,
		paramWeightProblemComplexity:  weights.ProblemComplexity,
		paramWeightSolutionImportance: weights.SolutionImportance,
		paramWeightReusability:        weights.Reusability,
	} {
		if err := l.store.SetParameter(ctx, name, value, reason); err != nil {
			return fmt.Errorf("persisting %s: %w", name, err)
		}
	}

	report.WeightsAdjusted = true
	report.Weights = weights
	l.log.Info(ctx, "adjusted scorer weights",
		zap.String("direction", report.WeightDirection),
		zap.Int("rejected_high", rejectedHigh),
		zap.Int("accepted_low", acceptedLow))
	return nil
}

// adjustThresholds moves the high threshold per process type: acceptance
// below 50% over at least 5 samples lowers it one step, above 90% raises
// it. High and medium are adjusted independently of each other; no
// ordering between thresholds is imposed.
func (l *Learner) adjustThresholds(ctx context.Context, feedback []*store.UserFeedback, th decide.Thresholds, report *Report) error {
	type tally struct {
		accepted int
		total    int
	}
	byProcess := make(map[string]*tally)
	var order []string
	for _, f := range feedback {
		if f.ProcessType == "" {
			continue
		}
		t, ok := byProcess[f.ProcessType]
		if !ok {
			t = &tally{}
			byProcess[f.ProcessType] = t
			order = append(order, f.ProcessType)
		}
		t.total++
		if f.Action != store.FeedbackReject {
			t.accepted++
		}
	}

	high := th.High
	for _, process := range order {
		t := byProcess[process]
		if t.total < minProcessSamples {
			continue
		}
		rate := float64(t.accepted) / float64(t.total)

		var next float64
		switch {
		case rate < lowAcceptanceRate:
			next = math.Max(high-thresholdStep, thresholdMin)
		case rate > highAcceptanceRate:
			next = math.Min(high+thresholdStep, thresholdMax)
		default:
			continue
		}
		if next == high {
			continue
		}

		reason := fmt.Sprintf("feedback: %s acceptance %.0f%% over %d samples",
			process, rate*100, t.total)
		if err := l.store.SetParameter(ctx, paramThresholdHigh, next, reason); err != nil {
			return fmt.Errorf("persisting %s: %w", paramThresholdHigh, err)
		}
		report.ThresholdChanges = append(report.ThresholdChanges, ThresholdChange{
			ProcessType:    process,
			AcceptanceRate: rate,
			Samples:        t.total,
			From:           high,
			To:             next,
		})
		l.log.Info(ctx, "adjusted high threshold",
			zap.String("process_type", process),
			zap.Float64("acceptance_rate", rate),
			zap.Float64("from", high),
			zap.Float64("to", next))
		high = next
	}
	return nil
}

// normalizeWeights scales the set to sum to 1 while keeping every weight
// inside [weightMin, weightMax]. Saturated weights are pinned and the
// residual is redistributed over the rest.
func normalizeWeights(values []float64) {
	for i := range values {
		values[i] = clampWeight(values[i])
	}
	for iter := 0; iter < len(values); iter++ {
		var sum float64
		for _, v := range values {
			sum += v
		}
		diff := 1 - sum
		if math.Abs(diff) <= 1e-9 {
			return
		}

		var free []int
		for i, v := range values {
			if diff > 0 && v < weightMax {
				free = append(free, i)
			} else if diff < 0 && v > weightMin {
				free = append(free, i)
			}
		}
		if len(free) == 0 {
			return
		}
		share := diff / float64(len(free))
		for _, i := range free {
			values[i] = clampWeight(values[i] + share)
		}
	}
}

func clampWeight(v float64) float64 {
	if v < weightMin {
		return weightMin
	}
	if v > weightMax {
		return weightMax
	}
	return v
}
