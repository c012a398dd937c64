package council

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quorumlabs/quorum/internal/config"
	"github.com/quorumlabs/quorum/internal/llm"
)

// ErrEmptyRoster is returned when a deliberation is started without advisors.
// It is the one input-validation failure surfaced before any model call.
var ErrEmptyRoster = errors.New("council: advisor roster is empty")

// PromptLoader resolves an advisor's persona reference to a system prompt.
type PromptLoader interface {
	LoadSystemPrompt(ref string) (string, error)
}

// Recorder receives per-call observability signals. Implementations must be
// safe for concurrent use; a nil Recorder disables recording.
type Recorder interface {
	RecordModelUsage(stage, model string)
	RecordModelFailure(stage, model string)
	RecordStageDuration(stage string, d time.Duration)
	RecordGatewayLatency(model string, d time.Duration)
}

// Engine orchestrates the three-stage deliberation pipeline. It holds no
// state between questions; each run is independent.
type Engine struct {
	registry *llm.Registry
	prompts  PromptLoader
	cfg      config.CouncilConfig
	logger   *zap.Logger
	recorder Recorder
}

// New creates an Engine.
func New(registry *llm.Registry, prompts PromptLoader, cfg config.CouncilConfig, logger *zap.Logger, recorder Recorder) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		registry: registry,
		prompts:  prompts,
		cfg:      cfg,
		logger:   logger,
		recorder: recorder,
	}
}

// RunOptions controls optional pipeline behaviour.
type RunOptions struct {
	// GenerateTitle starts title generation concurrently with the pipeline
	// and emits a title_complete event before the terminal complete event.
	GenerateTitle bool
}

// Run executes the full pipeline and streams progress events. The returned
// channel is closed after the terminal complete (or error) event. An empty
// roster fails synchronously before any model call.
func (e *Engine) Run(ctx context.Context, question string, advisors []Advisor, opts RunOptions) (<-chan Event, error) {
	if len(advisors) == 0 {
		return nil, ErrEmptyRoster
	}

	out := make(chan Event, 8)
	go func() {
		defer close(out)

		state := StateNotStarted
		defer func() {
			if r := recover(); r != nil {
				e.setState(&state, StateErrored)
				out <- Event{Type: EventError, Error: fmt.Sprintf("deliberation failed: %v", r)}
			}
		}()

		// Title generation is an auxiliary task: it must neither block nor be
		// blocked by the three stages, and is joined at the end.
		var titleCh chan string
		if opts.GenerateTitle {
			titleCh = make(chan string, 1)
			go func() {
				titleCh <- e.GenerateTitle(ctx, question)
			}()
		}

		e.setState(&state, StateStage1Running)
		out <- Event{Type: EventStage1Start}
		stage1 := e.CollectResponses(ctx, question, advisors)
		e.setState(&state, StateStage1Done)
		out <- Event{Type: EventStage1Complete, Responses: stage1}

		e.setState(&state, StateStage2Running)
		out <- Event{Type: EventStage2Start}
		stage2, labels := e.CollectRankings(ctx, question, advisors, stage1)
		aggregate := AggregateRankings(stage2, labels)
		e.setState(&state, StateStage2Done)
		out <- Event{
			Type:         EventStage2Complete,
			Rankings:     stage2,
			LabelToModel: labels.Mapping(),
			Aggregate:    aggregate,
		}

		e.setState(&state, StateStage3Running)
		out <- Event{Type: EventStage3Start}
		stage3 := e.Synthesize(ctx, question, stage1, stage2, labels)
		out <- Event{Type: EventStage3Complete, Synthesis: &stage3}

		if titleCh != nil {
			out <- Event{Type: EventTitleComplete, Title: <-titleCh}
		}

		e.setState(&state, StateComplete)
		out <- Event{Type: EventComplete}
	}()

	return out, nil
}

// Deliberate runs the pipeline to completion and assembles the result. Used
// by the non-streaming API path.
func (e *Engine) Deliberate(ctx context.Context, question string, advisors []Advisor, opts RunOptions) (Result, error) {
	events, err := e.Run(ctx, question, advisors, opts)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for ev := range events {
		switch ev.Type {
		case EventStage1Complete:
			res.Stage1 = ev.Responses
		case EventStage2Complete:
			res.Stage2 = ev.Rankings
			res.LabelToModel = ev.LabelToModel
			res.Aggregate = ev.Aggregate
		case EventStage3Complete:
			if ev.Synthesis != nil {
				res.Stage3 = *ev.Synthesis
			}
		case EventTitleComplete:
			res.Title = ev.Title
		case EventError:
			return res, errors.New(ev.Error)
		}
	}
	return res, nil
}

// CollectResponses is stage 1: every advisor answers the question
// concurrently. Output order follows roster order regardless of completion
// order; a failed call degrades to an empty response.
func (e *Engine) CollectResponses(ctx context.Context, question string, advisors []Advisor) []AdvisorResponse {
	start := time.Now()
	out := make([]AdvisorResponse, len(advisors))

	var wg sync.WaitGroup
	for i, adv := range advisors {
		wg.Add(1)
		go func(i int, adv Advisor) {
			defer wg.Done()

			messages := []llm.ChatMessage{{Role: llm.RoleUser, Content: question}}
			content, err := e.queryAdvisor(ctx, "stage1", adv, messages)
			if err != nil {
				e.logger.Warn("advisor response failed",
					zap.String("advisor", adv.Name),
					zap.String("model", adv.Model),
					zap.Error(err))
				content = ""
			}
			out[i] = AdvisorResponse{Model: adv.Name, Response: CleanResponse(content)}
		}(i, adv)
	}
	wg.Wait()

	e.recordStage("stage1", time.Since(start))
	return out
}

// CollectRankings is stage 2: stage-1 answers are anonymized into labels and
// every advisor blind-ranks them, concurrently. The returned LabelMap is only
// valid for this invocation.
func (e *Engine) CollectRankings(ctx context.Context, question string, advisors []Advisor, stage1 []AdvisorResponse) ([]RankingEntry, LabelMap) {
	start := time.Now()
	labels := NewLabelMap(stage1)
	prompt := buildRankingPrompt(question, stage1, labels)

	out := make([]RankingEntry, len(advisors))
	var wg sync.WaitGroup
	for i, adv := range advisors {
		wg.Add(1)
		go func(i int, adv Advisor) {
			defer wg.Done()

			messages := []llm.ChatMessage{{Role: llm.RoleUser, Content: prompt}}
			content, err := e.queryAdvisor(ctx, "stage2", adv, messages)
			if err != nil {
				e.logger.Warn("advisor ranking failed",
					zap.String("advisor", adv.Name),
					zap.String("model", adv.Model),
					zap.Error(err))
				content = ""
			}
			raw := CleanResponse(content)
			out[i] = RankingEntry{
				Model:         adv.Name,
				Ranking:       raw,
				ParsedRanking: ParseRanking(raw),
			}
		}(i, adv)
	}
	wg.Wait()

	e.recordStage("stage2", time.Since(start))
	return out, labels
}

// AggregateRankings converts per-reviewer label rankings into per-model mean
// positions. Pure and idempotent: identical inputs yield identical output.
// Unresolvable labels are dropped; a model no reviewer ranked gets no entry.
// Ties keep stage-1 response order (stable sort by label assignment order).
func AggregateRankings(rankings []RankingEntry, labels LabelMap) []AggregateRankingEntry {
	positions := make(map[string][]int, labels.Len())
	for _, entry := range rankings {
		for pos, label := range entry.ParsedRanking {
			model, ok := labels.Model(label)
			if !ok {
				continue
			}
			positions[model] = append(positions[model], pos+1)
		}
	}

	out := make([]AggregateRankingEntry, 0, labels.Len())
	for _, label := range labels.Labels() {
		model, _ := labels.Model(label)
		votes := positions[model]
		if len(votes) == 0 {
			continue
		}
		sum := 0
		for _, p := range votes {
			sum += p
		}
		out = append(out, AggregateRankingEntry{
			Model:       model,
			AverageRank: float64(sum) / float64(len(votes)),
			Votes:       len(votes),
		})
	}

	sortStableByAverageRank(out)
	return out
}

// Synthesize is stage 3: one chairman call over the full transcript. A
// gateway failure yields an empty response; there is no retry.
func (e *Engine) Synthesize(ctx context.Context, question string, stage1 []AdvisorResponse, stage2 []RankingEntry, labels LabelMap) SynthesisResult {
	start := time.Now()
	defer func() { e.recordStage("stage3", time.Since(start)) }()

	prompt := buildSynthesisPrompt(question, stage1, stage2, labels)
	messages := []llm.ChatMessage{{Role: llm.RoleUser, Content: prompt}}

	content, err := e.queryModel(ctx, "stage3", e.cfg.Chairman, messages, "")
	if err != nil {
		e.logger.Warn("chairman synthesis failed",
			zap.String("model", e.cfg.Chairman),
			zap.Error(err))
		return SynthesisResult{Model: e.cfg.Chairman}
	}

	return SynthesisResult{Model: e.cfg.Chairman, Response: CleanResponse(content)}
}

// GenerateTitle produces a short conversation title from the first message.
// Failures degrade to the default title.
func (e *Engine) GenerateTitle(ctx context.Context, firstMessage string) string {
	messages := []llm.ChatMessage{{Role: llm.RoleUser, Content: buildTitlePrompt(firstMessage)}}
	content, err := e.queryModel(ctx, "title", e.cfg.TitleModelOrChairman(), messages, "")
	if err != nil {
		e.logger.Warn("title generation failed", zap.Error(err))
		return "New Conversation"
	}

	title := CleanResponse(content)
	if title == "" {
		return "New Conversation"
	}
	return firstLine(title)
}

// queryAdvisor resolves the advisor's persona prompt and issues one bounded
// model call.
func (e *Engine) queryAdvisor(ctx context.Context, stage string, adv Advisor, messages []llm.ChatMessage) (string, error) {
	systemPrompt := ""
	if e.prompts != nil && adv.PromptFile != "" {
		sp, err := e.prompts.LoadSystemPrompt(adv.PromptFile)
		if err != nil {
			e.logger.Warn("persona prompt unavailable",
				zap.String("advisor", adv.Name),
				zap.String("ref", adv.PromptFile),
				zap.Error(err))
		} else {
			systemPrompt = sp
		}
	}
	return e.queryModel(ctx, stage, adv.Model, messages, systemPrompt)
}

// queryModel issues one gateway call under the per-call timeout.
func (e *Engine) queryModel(ctx context.Context, stage, modelID string, messages []llm.ChatMessage, systemPrompt string) (string, error) {
	provider, route, err := e.registry.Resolve(modelID)
	if err != nil {
		e.recordFailure(stage, modelID)
		return "", err
	}

	callCtx := ctx
	if timeout := e.cfg.CallTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	e.recordUsage(stage, modelID)
	start := time.Now()
	resp, err := provider.Chat(callCtx, llm.ChatRequest{
		Model:       route.Model,
		Messages:    llm.WithSystemPrompt(messages, systemPrompt),
		Temperature: route.Temperature,
		MaxTokens:   route.MaxTokens,
	})
	e.recordLatency(modelID, time.Since(start))
	if err != nil {
		e.recordFailure(stage, modelID)
		return "", err
	}
	return resp.Message.Content, nil
}

func (e *Engine) setState(state *State, next State) {
	*state = next
	e.logger.Debug("pipeline state", zap.String("state", string(next)))
}

func (e *Engine) recordUsage(stage, model string) {
	if e.recorder != nil {
		e.recorder.RecordModelUsage(stage, model)
	}
}

func (e *Engine) recordFailure(stage, model string) {
	if e.recorder != nil {
		e.recorder.RecordModelFailure(stage, model)
	}
}

func (e *Engine) recordStage(stage string, d time.Duration) {
	if e.recorder != nil {
		e.recorder.RecordStageDuration(stage, d)
	}
}

func (e *Engine) recordLatency(model string, d time.Duration) {
	if e.recorder != nil {
		e.recorder.RecordGatewayLatency(model, d)
	}
}
