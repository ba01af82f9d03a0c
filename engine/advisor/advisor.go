// Package advisor implements the three model-backed flows: symptom analysis,
// maintenance schedules and the POCHINI chat assistant.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pochini/pochini/engine/domain"
	"github.com/pochini/pochini/pkg/fn"
	"github.com/pochini/pochini/pkg/llm"
	"github.com/pochini/pochini/pkg/metrics"
)

// ContextProvider supplies prompt context for a chat question, typically
// similar past consultations. It must not fail the flow.
type ContextProvider interface {
	Context(ctx context.Context, question string) []string
}

// Options configures the flows.
type Options struct {
	Temperature    float32
	MaxTokens      int32
	ChatMaxTokens  int32
	RequestTimeout time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Temperature:    0.4,
		MaxTokens:      2048,
		ChatMaxTokens:  1024,
		RequestTimeout: 60 * time.Second,
	}
}

// SymptomInput is a validated symptom analysis request.
type SymptomInput struct {
	VehicleDetails string `json:"vehicleDetails"`
	Symptoms       string `json:"symptoms"`
}

// Diagnosis is one potential cause of the described symptoms.
type Diagnosis struct {
	Diagnosis    string `json:"diagnosis"`
	LikelyCauses string `json:"likelyCauses"`
}

// SymptomAnalysis is the symptom flow output.
type SymptomAnalysis struct {
	Diagnoses []Diagnosis `json:"diagnoses"`
}

// MaintenanceInput is a validated maintenance request.
type MaintenanceInput struct {
	Make  string `json:"make"`
	Model string `json:"model"`
}

// Schedule is the maintenance flow output.
type Schedule struct {
	Text   string  `json:"schedule"`
	Blocks []Block `json:"blocks"`
}

// ChatInput is a validated chat turn with prior history.
type ChatInput struct {
	Message string
	History []domain.ChatTurn
}

// ChatReply is the chat flow output.
type ChatReply struct {
	Response string `json:"response"`
}

// Advisor runs the flows against a model.
type Advisor struct {
	model   llm.Model
	recall  ContextProvider
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Registry

	symptoms    fn.Stage[SymptomInput, *SymptomAnalysis]
	maintenance fn.Stage[MaintenanceInput, *Schedule]
	chat        fn.Stage[ChatInput, *ChatReply]
	chatStream  fn.Stage[streamInput, *ChatReply]
}

// Option customises an Advisor.
type Option func(*Advisor)

// WithRecall adds similar-consultation context to chat prompts.
func WithRecall(p ContextProvider) Option { return func(a *Advisor) { a.recall = p } }

// WithMetrics records per-flow counters and latencies in reg.
func WithMetrics(reg *metrics.Registry) Option { return func(a *Advisor) { a.metrics = reg } }

// WithOptions overrides DefaultOptions.
func WithOptions(o Options) Option { return func(a *Advisor) { a.opts = o } }

// New creates an Advisor over model.
func New(model llm.Model, logger *slog.Logger, opts ...Option) *Advisor {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Advisor{model: model, opts: DefaultOptions(), logger: logger}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = metrics.New()
	}
	a.symptoms = instrument(a, "symptoms", fn.StageOf(a.analyzeSymptoms))
	a.maintenance = instrument(a, "maintenance", fn.StageOf(a.maintenanceSchedule))
	a.chat = instrument(a, "chat", fn.StageOf(a.chatOnce))
	a.chatStream = instrument(a, "chat_stream", fn.StageOf(a.chatStreamed))
	return a
}

// instrument wraps a flow in a span plus request, failure and latency metrics.
func instrument[In, Out any](a *Advisor, flow string, stage fn.Stage[In, Out]) fn.Stage[In, Out] {
	traced := fn.TracedStage("advisor."+flow, stage)
	requests := a.metrics.Counter("advisor_requests_total", "Advisor flow invocations.", "flow", flow)
	failures := a.metrics.Counter("advisor_failures_total", "Advisor flow failures.", "flow", flow)
	latency := a.metrics.Histogram("advisor_duration_seconds", "Advisor flow latency.", nil, "flow", flow)
	return func(ctx context.Context, in In) fn.Result[Out] {
		start := time.Now()
		requests.Inc()
		if a.opts.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.opts.RequestTimeout)
			defer cancel()
		}
		res := traced(ctx, in)
		latency.Since(start)
		if _, err := res.Unwrap(); err != nil {
			failures.Inc()
			a.logger.Warn("advisor flow failed", "flow", flow, "err", err, "duration", time.Since(start))
		} else {
			a.logger.Info("advisor flow done", "flow", flow, "duration", time.Since(start))
		}
		return res
	}
}

// AnalyzeSymptoms returns potential diagnoses for the described symptoms.
// An answer without diagnoses yields domain.ErrNoDiagnosis.
func (a *Advisor) AnalyzeSymptoms(ctx context.Context, in SymptomInput) (*SymptomAnalysis, error) {
	return a.symptoms.Run(ctx, in)
}

// MaintenanceSchedule returns a maintenance plan for the vehicle. An empty
// plan yields domain.ErrNoSchedule.
func (a *Advisor) MaintenanceSchedule(ctx context.Context, in MaintenanceInput) (*Schedule, error) {
	return a.maintenance.Run(ctx, in)
}

// Chat answers one chat turn.
func (a *Advisor) Chat(ctx context.Context, in ChatInput) (*ChatReply, error) {
	return a.chat.Run(ctx, in)
}

// modelErr reports an empty model answer as the flow's outcome error.
func modelErr(flow string, err, empty error) error {
	if errors.Is(err, llm.ErrEmptyResponse) {
		return fmt.Errorf("advisor: %s: %w", flow, empty)
	}
	return fmt.Errorf("advisor: %s: %w", flow, err)
}

func (a *Advisor) analyzeSymptoms(ctx context.Context, in SymptomInput) (*SymptomAnalysis, error) {
	prompt, err := render("symptoms", in)
	if err != nil {
		return nil, fmt.Errorf("advisor: symptoms: render: %w", err)
	}
	resp, err := a.model.Generate(ctx, llm.Request{
		Name:        "symptoms",
		Prompt:      prompt,
		Schema:      diagnosesSchema,
		Temperature: a.opts.Temperature,
		MaxTokens:   a.opts.MaxTokens,
	})
	if err != nil {
		return nil, modelErr("symptoms", err, domain.ErrNoDiagnosis)
	}
	var out SymptomAnalysis
	if err := llm.DecodeJSON(resp.Text, &out); err != nil {
		return nil, fmt.Errorf("advisor: symptoms: %w", err)
	}
	kept := out.Diagnoses[:0]
	for _, d := range out.Diagnoses {
		d.Diagnosis = strings.TrimSpace(d.Diagnosis)
		d.LikelyCauses = strings.TrimSpace(d.LikelyCauses)
		if d.Diagnosis != "" {
			kept = append(kept, d)
		}
	}
	out.Diagnoses = kept
	if len(out.Diagnoses) == 0 {
		return nil, fmt.Errorf("advisor: symptoms: %w", domain.ErrNoDiagnosis)
	}
	return &out, nil
}

func (a *Advisor) maintenanceSchedule(ctx context.Context, in MaintenanceInput) (*Schedule, error) {
	prompt, err := render("maintenance", in)
	if err != nil {
		return nil, fmt.Errorf("advisor: maintenance: render: %w", err)
	}
	resp, err := a.model.Generate(ctx, llm.Request{
		Name:        "maintenance",
		Prompt:      prompt,
		Schema:      scheduleSchema,
		Temperature: a.opts.Temperature,
		MaxTokens:   a.opts.MaxTokens,
	})
	if err != nil {
		return nil, modelErr("maintenance", err, domain.ErrNoSchedule)
	}
	var out struct {
		Schedule string `json:"schedule"`
	}
	if err := llm.DecodeJSON(resp.Text, &out); err != nil {
		return nil, fmt.Errorf("advisor: maintenance: %w", err)
	}
	text := strings.TrimSpace(out.Schedule)
	if text == "" {
		return nil, fmt.Errorf("advisor: maintenance: %w", domain.ErrNoSchedule)
	}
	return &Schedule{Text: text, Blocks: ParseSchedule(text)}, nil
}

func (a *Advisor) chatRequest(ctx context.Context, in ChatInput) (llm.Request, error) {
	var recalled []string
	if a.recall != nil {
		recalled = a.recall.Context(ctx, in.Message)
	}
	system, err := render("chat_system", struct{ Context []string }{recalled})
	if err != nil {
		return llm.Request{}, fmt.Errorf("advisor: chat: render: %w", err)
	}
	prompt, err := render("chat", in)
	if err != nil {
		return llm.Request{}, fmt.Errorf("advisor: chat: render: %w", err)
	}
	history := make([]llm.Message, 0, len(in.History))
	for _, t := range in.History {
		switch t.Role {
		case domain.RoleUser:
			history = append(history, llm.Message{Role: llm.RoleUser, Content: t.Content})
		case domain.RoleModel:
			history = append(history, llm.Message{Role: llm.RoleModel, Content: t.Content})
		}
	}
	return llm.Request{
		Name:        "chat",
		System:      system,
		Prompt:      prompt,
		History:     history,
		Temperature: a.opts.Temperature,
		MaxTokens:   a.opts.ChatMaxTokens,
	}, nil
}

func (a *Advisor) chatOnce(ctx context.Context, in ChatInput) (*ChatReply, error) {
	req, err := a.chatRequest(ctx, in)
	if err != nil {
		return nil, err
	}
	resp, err := a.model.Generate(ctx, req)
	if err != nil {
		return nil, modelErr("chat", err, domain.ErrNoAnswer)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, fmt.Errorf("advisor: chat: %w", domain.ErrNoAnswer)
	}
	return &ChatReply{Response: text}, nil
}

// ChatStream answers one chat turn, calling onToken for every fragment as
// it arrives. The complete reply is returned at the end.
func (a *Advisor) ChatStream(ctx context.Context, in ChatInput, onToken func(string) error) (*ChatReply, error) {
	return a.chatStream.Run(ctx, streamInput{ChatInput: in, onToken: onToken})
}

type streamInput struct {
	ChatInput
	onToken func(string) error
}

func (a *Advisor) chatStreamed(ctx context.Context, in streamInput) (*ChatReply, error) {
	req, err := a.chatRequest(ctx, in.ChatInput)
	if err != nil {
		return nil, err
	}
	resp, err := a.model.Stream(ctx, req, in.onToken)
	if err != nil {
		return nil, modelErr("chat stream", err, domain.ErrNoAnswer)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, fmt.Errorf("advisor: chat stream: %w", domain.ErrNoAnswer)
	}
	return &ChatReply{Response: text}, nil
}
