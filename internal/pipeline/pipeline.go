// Package pipeline is the single ingestion entry point: one Evaluate call
// runs classification, scoring, and the retention decision, then persists
// the content when the verdict says so.
//
// Weights and thresholds are read from the parameter store on every call.
// There is no cached copy, so a learner adjustment is live on the next
// evaluation.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/engramd/internal/classify"
	"github.com/fyrsmithlabs/engramd/internal/decide"
	"github.com/fyrsmithlabs/engramd/internal/embeddings"
	"github.com/fyrsmithlabs/engramd/internal/learn"
	"github.com/fyrsmithlabs/engramd/internal/logging"
	"github.com/fyrsmithlabs/engramd/internal/metrics"
	"github.com/fyrsmithlabs/engramd/internal/score"
	"github.com/fyrsmithlabs/engramd/internal/store"
)

// Options configures one evaluation.
type Options struct {
	// SessionID is the owning session for persisted content. Without it
	// the evaluation is advisory only and nothing is stored.
	SessionID string

	// FilePath and Language annotate the stored context when set.
	FilePath string
	Language string

	// ChangeKind is an externally supplied change kind hint.
	ChangeKind classify.ChangeType

	// Force persists the content regardless of the decision, as when the
	// user explicitly asks to remember something.
	Force bool
}

// Evaluation is the combined pipeline output.
type Evaluation struct {
	Classification classify.Result `json:"classification"`
	Scores         score.Result    `json:"scores"`
	Decision       decide.Result   `json:"decision"`

	// ContextID is set when the content was persisted.
	ContextID string `json:"context_id,omitempty"`
	Stored    bool   `json:"stored"`
}

// Pipeline wires the classifier, scorer, decision engine, learner, and
// store together.
type Pipeline struct {
	store      *store.Store
	classifier *classify.Classifier
	scorer     *score.Scorer
	engine     *decide.Engine
	learner    *learn.Learner
	embedder   embeddings.Embedder
	metrics    *metrics.Metrics
	log        *logging.Logger
}

// New creates a pipeline. The embedder may be nil; contexts are then
// stored without vectors.
func New(st *store.Store, embedder embeddings.Embedder, m *metrics.Metrics, log *logging.Logger) *Pipeline {
	if log == nil {
		log = logging.NewNop()
	}
	return &Pipeline{
		store:      st,
		classifier: classify.New(),
		scorer:     score.New(),
		engine:     decide.New(),
		learner:    learn.New(st, log),
		embedder:   embedder,
		metrics:    m,
		log:        log,
	}
}

// Learner exposes the pipeline's learner for explicit retune runs.
func (p *Pipeline) Learner() *learn.Learner {
	return p.learner
}

// Evaluate runs the classify-score-decide pass over content and persists
// it when the decision (or Force) calls for retention.
func (p *Pipeline) Evaluate(ctx context.Context, content string, opts Options) (*Evaluation, error) {
	if content == "" {
		return nil, store.ErrEmptyContent
	}
	started := time.Now()

	weights, err := p.learner.Weights(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading weights: %w", err)
	}
	thresholds, err := p.learner.Thresholds(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading thresholds: %w", err)
	}

	var meta *classify.Metadata
	if opts.ChangeKind != classify.ChangeUnknown || opts.FilePath != "" {
		meta = &classify.Metadata{ChangeKind: opts.ChangeKind, FilePath: opts.FilePath}
	}

	cls := p.classifier.Classify(content, meta)
	scores := p.scorer.Score(content, cls, weights)
	decision := p.engine.Decide(content, cls, scores, thresholds)

	eval := &Evaluation{
		Classification: cls,
		Scores:         scores,
		Decision:       decision,
	}

	if p.metrics != nil {
		p.metrics.EvaluationsTotal.WithLabelValues(string(decision.Action)).Inc()
		p.metrics.EvaluationDuration.Observe(time.Since(started).Seconds())
	}

	shouldStore := opts.Force || decision.Action == decide.ActionAutoRemember
	if !shouldStore || opts.SessionID == "" {
		p.log.Debug(ctx, "evaluated content",
			zap.String("type", string(cls.Type)),
			zap.Int("score", scores.Total),
			zap.String("action", string(decision.Action)))
		return eval, nil
	}

	stored, err := p.persist(ctx, content, opts, eval)
	if err != nil {
		return nil, err
	}
	eval.ContextID = stored.ID
	eval.Stored = true

	p.log.Info(ctx, "stored context",
		zap.String("context_id", stored.ID),
		zap.String("type", string(cls.Type)),
		zap.Int("score", scores.Total),
		zap.Float64("confidence", decision.Confidence))
	return eval, nil
}

// persist writes the evaluated content as a context, carrying the full
// audit trail in metadata.
func (p *Pipeline) persist(ctx context.Context, content string, opts Options, eval *Evaluation) (*store.Context, error) {
	c, err := store.NewContext(opts.SessionID, eval.Classification.Type, content)
	if err != nil {
		return nil, err
	}
	c.FilePath = opts.FilePath
	c.Language = opts.Language
	c.Tags = eval.Decision.Tags
	c.QualityScore = eval.Decision.Confidence
	c.Metadata = map[string]interface{}{
		"classification": map[string]interface{}{
			"confidence":       eval.Classification.Confidence,
			"reasoning":        eval.Classification.Reasoning,
			"matched_features": eval.Classification.MatchedFeatures,
		},
		"scores": map[string]interface{}{
			"code_significance":   eval.Scores.CodeSignificance.Score,
			"problem_complexity":  eval.Scores.ProblemComplexity.Score,
			"solution_importance": eval.Scores.SolutionImportance.Score,
			"reusability":         eval.Scores.Reusability.Score,
			"total":               eval.Scores.Total,
		},
		"decision": map[string]interface{}{
			"action":      string(eval.Decision.Action),
			"confidence":  eval.Decision.Confidence,
			"priority":    string(eval.Decision.Priority),
			"audit_trail": eval.Decision.AuditTrail,
		},
	}
	if len(eval.Classification.RelatedIssues) > 0 {
		c.Metadata["related_issues"] = eval.Classification.RelatedIssues
	}

	if p.embedder != nil {
		vector, err := p.embedder.Embed(ctx, content)
		if err != nil {
			// Store without the vector rather than losing the content.
			p.log.Warn(ctx, "embedding failed, storing without vector", zap.Error(err))
		} else {
			c.Embedding = &store.Embedding{
				Vector: vector,
				Source: content,
				Model:  p.embedder.Model(),
			}
		}
	}

	stored, err := p.store.CreateContext(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("storing context: %w", err)
	}
	if opts.FilePath != "" {
		if err := p.store.AssociateFile(ctx, stored.ID, opts.FilePath); err != nil {
			p.log.Warn(ctx, "file association failed", zap.Error(err))
		}
	}

	if p.metrics != nil {
		p.metrics.ContextsStoredTotal.WithLabelValues(string(stored.Type)).Inc()
	}
	return stored, nil
}

// Feedback records a user verdict on a stored context and runs a learner
// pass over the accumulated log.
func (p *Pipeline) Feedback(ctx context.Context, contextID string, action store.FeedbackAction, processType string, scoreValue float64) (*learn.Report, error) {
	_, err := p.store.RecordFeedback(ctx, &store.UserFeedback{
		ContextID:   contextID,
		Action:      action,
		ProcessType: processType,
		Score:       scoreValue,
	})
	if err != nil {
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.FeedbackTotal.WithLabelValues(string(action)).Inc()
	}

	report, err := p.learner.Process(ctx)
	if err != nil {
		return nil, fmt.Errorf("learner pass: %w", err)
	}
	if p.metrics != nil && report.Applied {
		if report.WeightsAdjusted {
			p.metrics.ParameterUpdatesTotal.WithLabelValues(string(store.ParamWeight)).Add(4)
		}
		if n := len(report.ThresholdChanges); n > 0 {
			p.metrics.ParameterUpdatesTotal.WithLabelValues(string(store.ParamThreshold)).Add(float64(n))
		}
	}
	return report, nil
}
