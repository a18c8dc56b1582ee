// Package service runs the per-post pipeline: extraction, source
// resolution, the AI call, verdict parsing, the decision rule, and
// dispatch. Stages within one post are strictly sequential.
package service

import (
	"context"
	"os"

	"golang-signal-relay/internal/relay/config"
	"golang-signal-relay/internal/relay/decision"
	"golang-signal-relay/internal/relay/dispatcher"
	"golang-signal-relay/internal/relay/dto"
	"golang-signal-relay/internal/relay/extractor"
	"golang-signal-relay/internal/relay/fetcher"
	"golang-signal-relay/internal/relay/gateway"
	"golang-signal-relay/internal/relay/parser"
	"golang-signal-relay/pkg/logger"
)

// Dispatcher is the outbound side of the pipeline.
type Dispatcher interface {
	Dispatch(r *dispatcher.Result, actionable bool) error
}

// Pipeline wires the stages together. It holds no per-post state; every
// value lives for one Process call.
type Pipeline struct {
	cfg        *config.Config
	logger     *logger.Logger
	extractor  *extractor.Extractor
	fetcher    fetcher.Resolver
	gateway    gateway.AIGateway
	engine     *decision.Engine
	dispatcher Dispatcher
}

// New creates a new Pipeline.
func New(
	cfg *config.Config,
	log *logger.Logger,
	ext *extractor.Extractor,
	fet fetcher.Resolver,
	gw gateway.AIGateway,
	eng *decision.Engine,
	disp Dispatcher,
) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		logger:     log,
		extractor:  ext,
		fetcher:    fet,
		gateway:    gw,
		engine:     eng,
		dispatcher: disp,
	}
}

// Process runs one post through the whole pipeline.
func (p *Pipeline) Process(ctx context.Context, post *dto.ChannelPost) {
	p.ProcessSignal(ctx, post, p.ExtractSignal(post))
}

// ExtractSignal runs only the extraction stage. The listener calls it
// synchronously so extraction follows arrival order even when the rest of
// the pipelines run concurrently.
func (p *Pipeline) ExtractSignal(post *dto.ChannelPost) *dto.ExtractedSignal {
	return p.extractor.Extract(post.Text, post.Entities)
}

// ProcessSignal runs the fetch, AI, parse, decide and dispatch stages for
// one extracted signal, strictly in that order. It never returns an error
// to the caller: every failure mode ends in a dispatched, self-describing
// message.
func (p *Pipeline) ProcessSignal(ctx context.Context, post *dto.ChannelPost, signal *dto.ExtractedSignal) {
	p.logger.Info("processing channel post",
		logger.IntField("message_id", post.MessageID),
		logger.IntField("extra_links", len(signal.ExtraLinks)),
	)

	result := &dispatcher.Result{Signal: signal}

	workDir, err := os.MkdirTemp("", "signal-relay-*")
	if err != nil {
		p.logger.Error("failed to create work dir", logger.ErrorField(err))
		result.AIErr = err
		p.dispatch(result, false)
		return
	}
	// every temp artifact lives under workDir; one removal covers all
	// exit paths
	defer os.RemoveAll(workDir)

	sources := p.resolveSources(ctx, signal, workDir)

	question := signal.QuestionText
	if p.cfg.Prompt.Question != "" {
		question = p.cfg.Prompt.Question
	}

	answer, err := p.gateway.Ask(ctx, question, sources)
	if err != nil {
		p.logger.Error("AI call failed", logger.ErrorField(err))
		result.AIErr = err
		p.dispatch(result, false)
		return
	}

	narrative, verdict := parser.ExtractVerdict(answer)
	result.Narrative = narrative
	result.Verdict = verdict

	if price, ok := signal.ReferencePrice(); ok {
		result.Plan = p.engine.PlanOrder(price)
	}

	p.dispatch(result, p.evaluate(verdict))
}

// resolveSources normalizes each extra link; a failing source is logged
// and skipped so the rest of the signal proceeds.
func (p *Pipeline) resolveSources(ctx context.Context, signal *dto.ExtractedSignal, workDir string) []*dto.NormalizedSource {
	var sources []*dto.NormalizedSource
	for _, link := range signal.ExtraLinks {
		src, err := p.fetcher.Resolve(ctx, link, workDir)
		if err != nil {
			p.logger.Error("failed to resolve source, skipping",
				logger.StringField("source", link), logger.ErrorField(err))
			continue
		}
		sources = append(sources, src)
	}
	return sources
}

// evaluate loads the thresholds fresh and applies the decision rule.
// Missing verdict or unreadable thresholds fail closed.
func (p *Pipeline) evaluate(verdict *dto.Verdict) bool {
	if verdict == nil {
		return false
	}
	thresholds, err := p.engine.LoadThresholds()
	if err != nil {
		p.logger.Error("failed to load thresholds", logger.ErrorField(err))
		return false
	}
	return p.engine.IsActionable(verdict, thresholds)
}

func (p *Pipeline) dispatch(result *dispatcher.Result, actionable bool) {
	if err := p.dispatcher.Dispatch(result, actionable); err != nil {
		p.logger.Error("dispatch failed", logger.ErrorField(err))
	}
}
