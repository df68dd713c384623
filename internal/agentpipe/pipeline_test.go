package agentpipe

import (
	"context"
	"errors"
	"testing"

	"github.com/livia-chatops/livia/internal/config"
	"github.com/livia-chatops/livia/internal/llmprovider"
	"github.com/livia-chatops/livia/internal/model"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name     string
	sequence [][]model.ToolCallEvent
	i        int
	transient bool
}

func (f *fakeProvider) Provider() string { return f.name }
func (f *fakeProvider) IsTransientError(err error) bool { return f.transient }
func (f *fakeProvider) StreamChat(ctx context.Context, turns []model.ConversationTurn, tools []llmprovider.Tool) (<-chan model.ToolCallEvent, error) {
	idx := f.i
	f.i++
	ch := make(chan model.ToolCallEvent, 10)
	go func() {
		defer close(ch)
		if idx >= len(f.sequence) {
			return
		}
		for _, e := range f.sequence[idx] {
			ch <- e
		}
	}()
	return ch, nil
}

type fakeSink struct {
	deltas []string
	calls  []model.ToolCall
}

func (s *fakeSink) OnTextDelta(delta, accumulated string) { s.deltas = append(s.deltas, accumulated) }
func (s *fakeSink) OnToolCallObserved(call model.ToolCall) { s.calls = append(s.calls, call) }

type fakeExecutor struct {
	outputs map[string]string
	err     error
}

func (e *fakeExecutor) Execute(ctx context.Context, call model.ToolCall) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return e.outputs[call.Name], nil
}

func testSysCfg() *config.SystemConfig {
	cfg := config.DefaultSystemConfig()
	cfg.MaxRetries = 1
	cfg.RetryDelayMs = 0
	cfg.LLMTimeoutMs = 5000
	return cfg
}

func TestRun_NoToolCalls(t *testing.T) {
	provider := &fakeProvider{sequence: [][]model.ToolCallEvent{
		{
			{Kind: model.EventTextDelta, Delta: "hello "},
			{Kind: model.EventTextDelta, Delta: "world"},
			{Kind: model.EventMessageOutputItem, Final: "hello world"},
		},
	}}
	p := &Pipeline{DefaultProvider: provider, SysCfg: testSysCfg()}
	sink := &fakeSink{}

	outcome, err := p.Run(context.Background(), nil, false, sink)
	require.NoError(t, err)
	require.Equal(t, "hello world", outcome.Text)
	require.Empty(t, outcome.ToolCalls)
}

func TestRun_ExecutesToolCallThenCompletes(t *testing.T) {
	provider := &fakeProvider{sequence: [][]model.ToolCallEvent{
		{
			{Kind: model.EventToolCallItem, Call: &model.ToolCall{ID: "1", Name: "web_search", Arguments: `{"q":"go"}`}},
			{Kind: model.EventMessageOutputItem, Final: ""},
		},
		{
			{Kind: model.EventTextDelta, Delta: "here are the results"},
			{Kind: model.EventMessageOutputItem, Final: "here are the results"},
		},
	}}
	executor := &fakeExecutor{outputs: map[string]string{"web_search": "result-1"}}
	p := &Pipeline{DefaultProvider: provider, Executor: executor, SysCfg: testSysCfg()}
	sink := &fakeSink{}

	outcome, err := p.Run(context.Background(), nil, false, sink)
	require.NoError(t, err)
	require.Equal(t, "here are the results", outcome.Text)
	require.Len(t, outcome.ToolCalls, 1)
	require.Equal(t, "web_search", outcome.ToolCalls[0].Name)
	require.Len(t, sink.calls, 1)
}

func TestRun_VisionRoutingUsesVisionProvider(t *testing.T) {
	defaultProvider := &fakeProvider{name: "default", sequence: [][]model.ToolCallEvent{
		{{Kind: model.EventMessageOutputItem, Final: "should not be used"}},
	}}
	visionProvider := &fakeProvider{name: "vision", sequence: [][]model.ToolCallEvent{
		{{Kind: model.EventMessageOutputItem, Final: "vision response"}},
	}}
	p := &Pipeline{DefaultProvider: defaultProvider, VisionProvider: visionProvider, SysCfg: testSysCfg()}

	outcome, err := p.Run(context.Background(), nil, true, nil)
	require.NoError(t, err)
	require.Equal(t, "vision response", outcome.Text)
	require.Equal(t, 0, defaultProvider.i)
	require.Equal(t, 1, visionProvider.i)
}

func TestRun_NonTransientErrorStopsImmediately(t *testing.T) {
	failing := &erroringProvider{err: errors.New("boom"), transient: false}
	p := &Pipeline{DefaultProvider: failing, SysCfg: testSysCfg()}

	_, err := p.Run(context.Background(), nil, false, nil)
	require.Error(t, err)
}

type erroringProvider struct {
	err       error
	transient bool
}

func (e *erroringProvider) Provider() string { return "erroring" }
func (e *erroringProvider) IsTransientError(err error) bool { return e.transient }
func (e *erroringProvider) StreamChat(ctx context.Context, turns []model.ConversationTurn, tools []llmprovider.Tool) (<-chan model.ToolCallEvent, error) {
	return nil, e.err
}

func TestRunThinkingTool_ExtractsReasoningTrace(t *testing.T) {
	full := "Reasoning ────── UNDERSTANDING the problem is X ────── Conclusion: do Y."
	provider := &fakeProvider{sequence: [][]model.ToolCallEvent{
		{{Kind: model.EventMessageOutputItem, Final: full}},
	}}

	out, err := RunThinkingTool(context.Background(), provider, `{"query":"how should we do Y"}`)
	require.NoError(t, err)
	require.Contains(t, out, "```")
	require.Contains(t, out, "UNDERSTANDING")
	require.Contains(t, out, "Conclusion: do Y.")
}

func TestRunThinkingTool_MissingQueryErrors(t *testing.T) {
	provider := &fakeProvider{}
	_, err := RunThinkingTool(context.Background(), provider, `{}`)
	require.Error(t, err)
}
