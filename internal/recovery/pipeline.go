package recovery

import (
	"strings"

	"go.uber.org/zap"

	"coursecraft-backend/internal/domain"
)

// Observer is notified of the tier that satisfied each recovery.
type Observer interface {
	RecordRecovery(kind domain.Kind, tier domain.Tier)
}

// Pipeline turns raw model output into a typed object. It runs the
// normalizer, a direct parse, the ordered repairs and finally the heuristic
// reconstructor, stopping at the first stage that yields a valid shape.
type Pipeline struct {
	validator     *Validator
	repairs       []Repair
	reconstructor *Reconstructor
	observer      Observer
	logger        *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used to report the satisfying tier.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRepairs replaces the default repair sequence.
func WithRepairs(repairs ...Repair) Option {
	return func(p *Pipeline) {
		p.repairs = repairs
	}
}

// WithObserver registers a tier observer, typically the metrics collector.
func WithObserver(observer Observer) Option {
	return func(p *Pipeline) {
		p.observer = observer
	}
}

// NewPipeline creates a Pipeline with the default repairs.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		validator:     NewValidator(),
		repairs:       DefaultRepairs(),
		reconstructor: NewReconstructor(),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Validator exposes the validator the pipeline probes with.
func (p *Pipeline) Validator() *Validator {
	return p.validator
}

// Recover never fails: the returned object always satisfies kind's
// contract. Unknown kinds fall back to a heuristic Topic.
func (p *Pipeline) Recover(raw string, kind domain.Kind) domain.RecoveredObject {
	if _, err := domain.NewPayload(kind); err != nil {
		p.logger.Error("recovery requested for unknown kind", zap.String("kind", string(kind)))
		return p.finish(DefaultPayload(kind), domain.TierHeuristic, "default", err)
	}

	candidate := Normalize(raw, kind)
	payload, err := p.validator.Decode(candidate, kind)
	if err == nil {
		return p.finish(payload, domain.TierExact, "", nil)
	}
	lastErr := err

	if strings.ContainsAny(candidate, "{[") {
		text := candidate
		for _, repair := range p.repairs {
			next := repair.Apply(text)
			if next == text {
				continue
			}
			text = next
			payload, err := p.validator.Decode(text, kind)
			if err == nil {
				return p.finish(payload, domain.TierRepaired, repair.Name, lastErr)
			}
			lastErr = err
		}
	}

	payload = p.reconstructor.Reconstruct(raw, kind)
	if payload == nil || p.validator.ValidatePayload(payload) != nil {
		return p.finish(DefaultPayload(kind), domain.TierHeuristic, "default", lastErr)
	}
	return p.finish(payload, domain.TierHeuristic, "reconstruct", lastErr)
}

// RecoverResponse recovers a model response, logging the prompt it answered.
func (p *Pipeline) RecoverResponse(resp domain.RawModelResponse, kind domain.Kind) domain.RecoveredObject {
	obj := p.Recover(resp.Text, kind)
	p.logger.Debug("model response recovered",
		zap.Int("prompt_length", len(resp.Prompt)),
		zap.Int("response_length", len(resp.Text)),
		zap.Time("received_at", resp.ReceivedAt),
		zap.String("tier", string(obj.Tier)),
	)
	return obj
}

func (p *Pipeline) finish(payload domain.Payload, tier domain.Tier, step string, cause error) domain.RecoveredObject {
	obj := domain.NewRecoveredObject(payload, tier)

	fields := []zap.Field{
		zap.String("kind", string(obj.Kind)),
		zap.String("tier", string(tier)),
	}
	if step != "" {
		fields = append(fields, zap.String("step", step))
	}
	if cause != nil {
		fields = append(fields, zap.NamedError("last_violation", cause))
	}
	if tier == domain.TierHeuristic {
		p.logger.Warn("structured output recovered heuristically", fields...)
	} else {
		p.logger.Debug("structured output recovered", fields...)
	}

	if p.observer != nil {
		p.observer.RecordRecovery(obj.Kind, tier)
	}
	return obj
}
