package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/serialmirror/internal/crawler"
	"github.com/nao1215/serialmirror/internal/format"
	"github.com/nao1215/serialmirror/internal/index"
)

// Archive is the state handed from step to step: the shared series index
// and the result of every stage that ran.
type Archive struct {
	// Index is shared by all steps, so a format step sees the pages a
	// preceding crawl step added.
	Index *index.Index

	// Crawl is set by CrawlStep, even when the crawl aborted.
	Crawl *crawler.Result

	// Format is set by FormatStep.
	Format *format.Result

	// Performed lists the names of the steps that ran, failed ones included.
	Performed []string

	// Err is the first step error.
	Err error
}

// Step defines the interface that all pipeline steps must implement.
// A step carries its configured engine or formatter.
type Step interface {
	// Do executes the step against the archive.
	Do(ctx context.Context, a *Archive) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps executing the remaining steps after a step
// fails. mirror uses it to format whatever was crawled before an abort.
// Cancellation always stops the pipeline.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given steps and options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{steps: make([]Step, 0, 2)}
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

// Execute runs all steps in sequence and returns the first error.
//
// The context is checked before each step; steps handle cancellation
// within themselves (the crawl engine stops between pages).
func (p *Pipeline) Execute(ctx context.Context, a *Archive) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled", "step", step.Name(), "reason", err)
			if a.Err == nil {
				a.Err = err
			}
			return a.Err
		}

		p.logger.Info("executing step", "step", step.Name())

		err := step.Do(ctx, a)
		a.Performed = append(a.Performed, step.Name())
		if err == nil {
			p.logger.Debug("step completed", "step", step.Name())
			continue
		}

		p.logger.Error("step failed", "step", step.Name(), "error", err)
		if a.Err == nil {
			a.Err = err
		}
		if !p.continueOnError || ctx.Err() != nil {
			return a.Err
		}
	}
	return a.Err
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
