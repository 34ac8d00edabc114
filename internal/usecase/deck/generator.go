// Package deck produces presentations and reports each step as a stream
// event.
package deck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"slidecoffee/internal/domain"
	"slidecoffee/internal/infra/config"
	"slidecoffee/internal/infra/tracer"
)

// Number of research results requested per generation.
const researchResults = 5

// Emitter receives the events of one generation in order.
type Emitter interface {
	Emit(ev domain.StreamEvent) error
}

// EmitterFunc adapts a function to an Emitter.
type EmitterFunc func(ev domain.StreamEvent) error

// Emit implements Emitter.
func (f EmitterFunc) Emit(ev domain.StreamEvent) error { return f(ev) }

// Job is one authorized generation.
type Job struct {
	Request     domain.GenerationRequest
	UserID      string
	WorkspaceID string
	// MaxSlides is the plan capacity for this generation. Zero means the
	// per-generation hard cap.
	MaxSlides int
}

// Generator runs the research, outline, slide and save pipeline.
type Generator struct {
	llm     domain.LLMProvider
	search  domain.SearchBackend
	store   domain.PresentationStore
	cfg     config.DeckConfig
	schemas *schemas
	logger  *slog.Logger
	now     func() time.Time
}

// NewGenerator creates a Generator. search may be nil to disable research.
func NewGenerator(llm domain.LLMProvider, search domain.SearchBackend, store domain.PresentationStore, cfg config.DeckConfig, logger *slog.Logger) (*Generator, error) {
	s, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	if cfg.DefaultSlides <= 0 {
		cfg.DefaultSlides = 8
	}
	if cfg.OutlineMaxTokens <= 0 {
		cfg.OutlineMaxTokens = 2048
	}
	if cfg.SlideMaxTokens <= 0 {
		cfg.SlideMaxTokens = 1024
	}
	return &Generator{
		llm:     llm,
		search:  search,
		store:   store,
		cfg:     cfg,
		schemas: s,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Budget checks the workspace's usage for the current month against plan
// and returns the slide capacity of a new generation. A spent quota returns
// a *QuotaError.
func (g *Generator) Budget(ctx context.Context, workspaceID string, plan domain.Plan) (int, error) {
	usage, err := g.store.UsageSince(ctx, workspaceID, domain.StartOfMonth(g.now()))
	if err != nil {
		return 0, fmt.Errorf("load usage: %w", err)
	}
	budget, err := plan.SlideBudget(usage)
	if err != nil {
		return 0, newQuotaError(plan, usage, err)
	}
	return budget, nil
}

// Run executes job, emitting every step. A failure after the stream has
// started is reported as an error event and returned.
func (g *Generator) Run(ctx context.Context, job Job, out Emitter) error {
	ctx, span := tracer.StartSpan(ctx, "deck.generate",
		trace.WithAttributes(
			tracer.StringAttr("deck.workspace_id", job.WorkspaceID),
			tracer.BoolAttr("deck.research", job.Request.ResearchEnabled()),
		),
	)
	defer span.End()

	r := &run{g: g, job: job, out: out}
	err := r.execute(ctx)
	if err == nil {
		tracer.SetOK(span)
		return nil
	}

	tracer.RecordError(span, err)
	var emitErr *emitError
	if errors.As(err, &emitErr) || ctx.Err() != nil {
		g.logger.Info("generation aborted", "workspace_id", job.WorkspaceID, "error", err)
		return err
	}
	g.logger.Error("generation failed", "workspace_id", job.WorkspaceID, "error", err)
	if emitErr := out.Emit(domain.ErrorEvent{Message: err.Error()}); emitErr != nil {
		g.logger.Debug("error event not delivered", "error", emitErr)
	}
	return err
}

// emitError marks a failure to deliver an event, usually a disconnected client.
type emitError struct {
	err error
}

func (e *emitError) Error() string { return "emit event: " + e.err.Error() }
func (e *emitError) Unwrap() error { return e.err }

// run holds the state of a single generation.
type run struct {
	g       *Generator
	job     Job
	out     Emitter
	sources []domain.Source
	outline domain.Outline
	slides  []domain.Slide
}

func (r *run) emit(ev domain.StreamEvent) error {
	if err := r.out.Emit(ev); err != nil {
		return &emitError{err: err}
	}
	return nil
}

func (r *run) execute(ctx context.Context) error {
	req := r.job.Request
	if err := r.emit(domain.StartEvent{Message: "Starting presentation generation..."}); err != nil {
		return err
	}

	var research string
	if req.ResearchEnabled() && req.Topic != "" && r.g.search != nil {
		var err error
		if research, err = r.research(ctx, req.Topic); err != nil {
			return err
		}
	}

	if err := r.buildOutline(ctx, research); err != nil {
		return err
	}
	if err := r.generateSlides(ctx); err != nil {
		return err
	}
	return r.save(ctx)
}

// research emits the research events. A failed search is reported and
// generation continues without sources.
func (r *run) research(ctx context.Context, topic string) (string, error) {
	if err := r.emit(domain.ResearchStartEvent{Message: "Researching your topic..."}); err != nil {
		return "", err
	}

	sctx, span := tracer.StartSpan(ctx, "deck.research")
	sources, err := r.g.search.Search(sctx, topic, researchResults)
	if err != nil {
		tracer.RecordError(span, err)
		span.End()
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		r.g.logger.Warn("research failed", "backend", r.g.search.Name(), "error", err,
			"code", domain.ErrorCodeOf(err))
		return "", r.emit(domain.ResearchErrorEvent{Message: "Research failed, continuing without sources"})
	}
	span.SetAttributes(tracer.IntAttr("deck.sources", len(sources)))
	tracer.SetOK(span)
	span.End()

	for _, s := range sources {
		if err := r.emit(domain.ResearchSourceEvent{Source: s}); err != nil {
			return "", err
		}
	}
	r.sources = sources
	if err := r.emit(domain.ResearchCompleteEvent{
		Message:     fmt.Sprintf("Found %d sources", len(sources)),
		SourceCount: len(sources),
	}); err != nil {
		return "", err
	}
	return formatResearch(topic, sources), nil
}

func (r *run) buildOutline(ctx context.Context, research string) error {
	if err := r.emit(domain.OutlineStartEvent{Message: "Creating presentation outline..."}); err != nil {
		return err
	}

	req := r.job.Request
	subject := req.Topic
	if subject == "" {
		subject = req.PlanTitle()
	}
	var plan []byte
	if req.HasPlan() {
		plan = req.PresentationPlan
	}

	ctx, span := tracer.StartSpan(ctx, "deck.outline")
	defer span.End()

	resp, err := r.g.llm.Chat(ctx, domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: outlineSystemPrompt},
			{Role: domain.RoleUser, Content: outlinePrompt(truncateRunes(subject, maxSubjectLength), research, plan)},
		},
		MaxTokens:   r.g.cfg.OutlineMaxTokens,
		Temperature: r.g.cfg.Temperature,
		JSONMode:    true,
	})
	if err != nil {
		tracer.RecordError(span, err)
		return fmt.Errorf("failed to generate outline: %w", err)
	}
	if err := decodeValidated(resp.Message.Content, r.g.schemas.outline, &r.outline); err != nil {
		tracer.RecordError(span, err)
		return fmt.Errorf("failed to generate outline: %w", err)
	}
	span.SetAttributes(tracer.IntAttr("deck.outline_slides", len(r.outline.Slides)))
	tracer.SetOK(span)

	return r.emit(domain.OutlineCompleteEvent{
		Message: fmt.Sprintf("Outline ready with %d slides", len(r.outline.Slides)),
		Outline: r.outline,
	})
}

// slideCount returns how many slides were asked for and how many the plan
// allows.
func (r *run) slideCount() (requested, allowed int) {
	requested = len(r.outline.Slides)
	if requested == 0 {
		requested = r.g.cfg.DefaultSlides
	}
	capacity := r.job.MaxSlides
	if capacity <= 0 || capacity > domain.MaxSlidesPerGeneration {
		capacity = domain.MaxSlidesPerGeneration
	}
	return requested, min(requested, capacity)
}

func (r *run) generateSlides(ctx context.Context) error {
	if err := r.emit(domain.SlideStartEvent{Message: "Generating slides..."}); err != nil {
		return err
	}

	requested, count := r.slideCount()
	if requested > count {
		msg := fmt.Sprintf("Limited to %d slides due to plan capacity (requested %d)", count, requested)
		r.g.logger.Info("slide count capped", "workspace_id", r.job.WorkspaceID, "requested", requested, "allowed", count)
		if err := r.emit(domain.WarningEvent{Message: msg}); err != nil {
			return err
		}
	}

	ctx, span := tracer.StartSpan(ctx, "deck.slides",
		trace.WithAttributes(tracer.IntAttr("deck.slide_count", count)))
	defer span.End()

	r.slides = make([]domain.Slide, 0, count)
	for i := range count {
		var item domain.OutlineItem
		if i < len(r.outline.Slides) {
			item = r.outline.Slides[i]
		}
		slide, err := r.generateSlide(ctx, i+1, item)
		if err != nil {
			tracer.RecordError(span, err)
			return err
		}
		r.slides = append(r.slides, slide)

		if err := r.emit(domain.SlideGeneratedEvent{
			SlideNumber: i + 1,
			TotalSlides: count,
			Slide:       slide,
			Progress:    float64(i+1) / float64(count) * 100,
		}); err != nil {
			return err
		}
	}
	tracer.SetOK(span)

	return r.emit(domain.SlidesCompleteEvent{
		Message:    fmt.Sprintf("Generated %d slides", len(r.slides)),
		SlideCount: len(r.slides),
	})
}

func (r *run) generateSlide(ctx context.Context, n int, item domain.OutlineItem) (domain.Slide, error) {
	resp, err := r.g.llm.Chat(ctx, domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: slideSystemPrompt},
			{Role: domain.RoleUser, Content: slidePrompt(n, item, r.job.Request.Brand)},
		},
		MaxTokens:   r.g.cfg.SlideMaxTokens,
		Temperature: r.g.cfg.Temperature,
		JSONMode:    true,
	})
	if err != nil {
		return domain.Slide{}, fmt.Errorf("failed to generate slide %d: %w", n, err)
	}

	var reply slideReply
	if err := decodeValidated(resp.Message.Content, r.g.schemas.slide, &reply); err != nil {
		return domain.Slide{}, fmt.Errorf("failed to generate slide %d: %w", n, err)
	}
	slide := domain.Slide{
		Title:        reply.Title,
		Content:      reply.content(),
		Layout:       reply.Layout,
		DesignNotes:  reply.DesignNotes,
		SpeakerNotes: reply.SpeakerNotes,
	}
	if slide.Title == "" {
		slide.Title = item.Title
	}
	return slide, nil
}

func (r *run) save(ctx context.Context) error {
	req := r.job.Request
	title := r.outline.Title
	if title == "" {
		title = req.Topic
	}
	if title == "" {
		title = req.PlanTitle()
	}

	p := &domain.Presentation{
		WorkspaceID: r.job.WorkspaceID,
		CreatedBy:   r.job.UserID,
		ProjectID:   req.ProjectID,
		BrandID:     req.EffectiveBrandID(),
		Title:       title,
		Description: r.outline.Summary,
		Status:      domain.PresentationDraft,
		Slides:      r.slides,
		Sources:     r.sources,
	}
	id, err := r.g.store.Save(ctx, p)
	if err != nil {
		return fmt.Errorf("save presentation: %w", err)
	}
	r.g.logger.Info("presentation saved",
		"id", id,
		"workspace_id", r.job.WorkspaceID,
		"slides", len(r.slides),
		"sources", len(r.sources),
	)

	refs := make([]domain.SourceRef, 0, len(r.sources))
	for _, s := range r.sources {
		refs = append(refs, domain.SourceRef{URL: s.URL, Title: s.Title})
	}
	return r.emit(domain.CompleteEvent{
		Message: "Presentation created successfully!",
		Presentation: &domain.PresentationRef{
			ID:         id,
			Title:      title,
			SlideCount: len(r.slides),
		},
		Sources: refs,
	})
}
