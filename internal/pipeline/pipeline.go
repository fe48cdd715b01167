package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Step is one stage of post processing.
type Step interface {
	// Do executes the step. Recoverable problems are recorded on the job;
	// a returned error aborts the remaining steps.
	Do(ctx context.Context, job *Job) error

	// Name returns the step's name for logging and error messages.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
	now    func() time.Time
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithClock overrides the time source used for step timings.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps on job. Cancellation is checked before each step.
// The first step error is returned wrapped with the step name.
func (p *Pipeline) Execute(ctx context.Context, job *Job) error {
	if job.Timings == nil {
		job.Timings = make(map[string]time.Duration)
	}

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled", "step", step.Name(), "url", job.URL, "reason", err)
			return err
		}

		p.logger.Debug("executing step", "step", step.Name(), "url", job.URL)

		start := p.now()
		err := step.Do(ctx, job)
		job.Timings[step.Name()] = p.now().Sub(start)

		if err != nil {
			p.logger.Debug("step failed", "step", step.Name(), "url", job.URL, "error", err)
			return fmt.Errorf("%s: %w", step.Name(), err)
		}
	}
	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
