package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang-signal-relay/internal/relay/config"
	"golang-signal-relay/internal/relay/decision"
	"golang-signal-relay/internal/relay/dispatcher"
	"golang-signal-relay/internal/relay/dto"
	"golang-signal-relay/internal/relay/extractor"
	"golang-signal-relay/pkg/logger"
)

type fakeResolver struct {
	failOn map[string]bool
	seen   []string
}

func (f *fakeResolver) Resolve(_ context.Context, source, _ string) (*dto.NormalizedSource, error) {
	f.seen = append(f.seen, source)
	if f.failOn[source] {
		return nil, errors.New("connection refused")
	}
	return &dto.NormalizedSource{
		Origin:     source,
		Kind:       dto.SourceKindText,
		InlineText: "content of " + source,
	}, nil
}

type fakeGateway struct {
	answer   string
	err      error
	question string
	sources  []*dto.NormalizedSource
	calls    int
}

func (f *fakeGateway) Ask(_ context.Context, question string, sources []*dto.NormalizedSource) (string, error) {
	f.calls++
	f.question = question
	f.sources = sources
	return f.answer, f.err
}

type fakeDispatcher struct {
	results    []*dispatcher.Result
	actionable []bool
}

func (f *fakeDispatcher) Dispatch(r *dispatcher.Result, actionable bool) error {
	f.results = append(f.results, r)
	f.actionable = append(f.actionable, actionable)
	return nil
}

func newTestPipeline(t *testing.T, res *fakeResolver, gw *fakeGateway, disp *fakeDispatcher) *Pipeline {
	t.Helper()
	log, err := logger.New("error", "json")
	require.NoError(t, err)

	settings := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(settings, []byte(`{"min1":10,"max1":40,"min2":5,"max2":30}`), 0o644))

	cfg := &config.Config{}
	cfg.Decision.SettingsPath = settings
	cfg.Fetcher.MaxInlineChars = 40000

	return New(cfg, log, extractor.New(log), res, gw, decision.New(cfg, log), disp)
}

func post(text string) *dto.ChannelPost {
	return &dto.ChannelPost{MessageID: 7, Text: text}
}

// postWithLinks appends each link on its own line with a matching url
// entity. ASCII-only test text keeps UTF-16 offsets equal to byte offsets.
func postWithLinks(question string, links ...string) *dto.ChannelPost {
	text := question
	var entities []tgbotapi.MessageEntity
	for _, link := range links {
		text += "\n"
		entities = append(entities, tgbotapi.MessageEntity{
			Type:   "url",
			Offset: len(text),
			Length: len(link),
		})
		text += link
	}
	return &dto.ChannelPost{MessageID: 7, Text: text, Entities: entities}
}

func TestProcessOneFailedSourceDoesNotBlockAICall(t *testing.T) {
	res := &fakeResolver{failOn: map[string]bool{"https://b.example/doc.pdf": true}}
	gw := &fakeGateway{answer: "no verdict here"}
	disp := &fakeDispatcher{}
	p := newTestPipeline(t, res, gw, disp)

	p.Process(context.Background(), postWithLinks("what next?",
		"https://primary.example/post",
		"https://a.example/x", "https://b.example/doc.pdf", "https://c.example/y"))

	assert.Len(t, res.seen, 3)
	require.Equal(t, 1, gw.calls)
	// only the two resolvable sources reach the gateway
	require.Len(t, gw.sources, 2)
	assert.Equal(t, "https://a.example/x", gw.sources[0].Origin)
	assert.Equal(t, "https://c.example/y", gw.sources[1].Origin)
	require.Len(t, disp.results, 1)
	assert.NoError(t, disp.results[0].AIErr)
}

func TestProcessAIFailureStillDispatches(t *testing.T) {
	gw := &fakeGateway{err: errors.New("quota exceeded")}
	disp := &fakeDispatcher{}
	p := newTestPipeline(t, &fakeResolver{}, gw, disp)

	p.Process(context.Background(), post("question text https://a.example/x"))

	require.Len(t, disp.results, 1)
	assert.ErrorContains(t, disp.results[0].AIErr, "quota exceeded")
	assert.False(t, disp.actionable[0])
	assert.Empty(t, disp.results[0].Narrative)
}

func TestProcessActionableVerdictWithOrderPlan(t *testing.T) {
	gw := &fakeGateway{answer: "analysis text\n```json\n" +
		`{"prob_up": 60, "prob_down": 30, "prob_stable": 40, "company": "Acme"}` +
		"\n```"}
	disp := &fakeDispatcher{}
	p := newTestPipeline(t, &fakeResolver{}, gw, disp)

	p.Process(context.Background(), post(`check this {'price': 12.5, 'ticker': 'ACME'}`))

	require.Len(t, disp.results, 1)
	r := disp.results[0]
	require.NotNil(t, r.Verdict)
	assert.Equal(t, "Acme", r.Verdict.Company)
	assert.True(t, disp.actionable[0])
	require.NotNil(t, r.Plan)
	assert.InDelta(t, 12.5, r.Plan.EntryPrice, 1e-9)
	assert.InDelta(t, 11.25, r.Plan.StopLoss, 1e-9)
	assert.InDelta(t, 25.0, r.Plan.TakeProfit, 1e-9)
}

func TestProcessNoVerdictNotActionable(t *testing.T) {
	gw := &fakeGateway{answer: "free-form prose with no structured block"}
	disp := &fakeDispatcher{}
	p := newTestPipeline(t, &fakeResolver{}, gw, disp)

	p.Process(context.Background(), post("anything interesting?"))

	require.Len(t, disp.results, 1)
	assert.Nil(t, disp.results[0].Verdict)
	assert.Equal(t, "free-form prose with no structured block", disp.results[0].Narrative)
	assert.False(t, disp.actionable[0])
}

func TestProcessConfiguredQuestionOverridesPostText(t *testing.T) {
	gw := &fakeGateway{answer: "ok"}
	disp := &fakeDispatcher{}
	p := newTestPipeline(t, &fakeResolver{}, gw, disp)
	p.cfg.Prompt.Question = "standing question"

	p.Process(context.Background(), post("post question"))

	assert.Equal(t, "standing question", gw.question)
	require.Len(t, disp.results, 1)
}

func TestProcessUnreadableThresholdsFailClosed(t *testing.T) {
	gw := &fakeGateway{answer: "```json\n" + `{"prob_up": 60, "prob_down": 30, "prob_stable": 40}` + "\n```"}
	disp := &fakeDispatcher{}
	p := newTestPipeline(t, &fakeResolver{}, gw, disp)
	p.cfg.Decision.SettingsPath = filepath.Join(t.TempDir(), "missing.json")

	p.Process(context.Background(), post("q"))

	require.Len(t, disp.results, 1)
	require.NotNil(t, disp.results[0].Verdict)
	assert.False(t, disp.actionable[0])
}

func TestProcessSourcelessPostStillAsks(t *testing.T) {
	gw := &fakeGateway{answer: "ok"}
	disp := &fakeDispatcher{}
	res := &fakeResolver{}
	p := newTestPipeline(t, res, gw, disp)

	p.Process(context.Background(), post("just a question, no links"))

	assert.Empty(t, res.seen)
	assert.Equal(t, 1, gw.calls)
	assert.Equal(t, "just a question, no links", gw.question)
}
