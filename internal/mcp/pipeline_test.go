package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/livia-chatops/livia/internal/config"
	"github.com/livia-chatops/livia/internal/governor"
	"github.com/livia-chatops/livia/internal/model"
	"github.com/stretchr/testify/require"
)

func testTable() *Table {
	return NewTable([]config.MCPServiceConfig{
		{Key: "mail", ServerLabel: "mail-gw", ServerURL: "https://mcp.example/mail", SystemPrompt: "Use the mail tool."},
		{Key: "calendar", ServerLabel: "cal-gw", ServerURL: "https://mcp.example/cal", SystemPrompt: "Use the calendar tool."},
	}, "cred")
}

func testGovernor() *governor.Governor {
	return governor.New(map[string]config.GovernorPoolConfig{
		"integration": {MaxConcurrent: 3, RequestsPerMinute: 1000, RequestsPerHour: 1000, RetryAttempts: 1, MinWaitSeconds: 0, MaxWaitSeconds: 0},
	})
}

type fakeRunner struct {
	calls   []string
	results []Result
	errs    []error
	i       int
	overflowOn int // call index that should be classified as context overflow
	transientAlways bool
}

func (f *fakeRunner) RunHostedMCP(ctx context.Context, systemPrompt, userText string, images []model.ImageRef, desc HostedDescriptor) (Result, error) {
	idx := f.i
	f.i++
	f.calls = append(f.calls, systemPrompt)
	if idx < len(f.results) {
		return f.results[idx], f.errs[idx]
	}
	return Result{}, errors.New("no more results")
}

func (f *fakeRunner) IsContextOverflow(err error) bool {
	return err != nil && err.Error() == "overflow"
}

func (f *fakeRunner) IsTransientError(err error) bool { return f.transientAlways }

type fakeFallback struct {
	called bool
	result Result
}

func (f *fakeFallback) Run(ctx context.Context, text string, images []model.ImageRef) (Result, error) {
	f.called = true
	return f.result, nil
}

func TestRun_SucceedsOnFirstAttempt(t *testing.T) {
	runner := &fakeRunner{results: []Result{{Text: "done"}}, errs: []error{nil}}
	fb := &fakeFallback{}
	p := NewPipeline(testTable(), runner, testGovernor(), "bearer-token", fb)

	result, err := p.Run(context.Background(), "calendar", "book a meeting", nil)
	require.NoError(t, err)
	require.Equal(t, "done", result.Text)
	require.False(t, fb.called)
}

func TestRun_MailContextOverflowRetriesNarrowed(t *testing.T) {
	runner := &fakeRunner{
		results: []Result{{}, {Text: "short summary"}},
		errs:    []error{errors.New("overflow"), nil},
	}
	fb := &fakeFallback{}
	p := NewPipeline(testTable(), runner, testGovernor(), "bearer-token", fb)

	result, err := p.Run(context.Background(), "mail", "summarize my inbox", nil)
	require.NoError(t, err)
	require.Equal(t, "short summary", result.Text)
	require.Contains(t, runner.calls[1], "exceeded the context window")
	require.False(t, fb.called)
}

func TestRun_FallsBackToGenericThenAgent(t *testing.T) {
	runner := &fakeRunner{
		results: []Result{{}, {}},
		errs:    []error{errors.New("boom"), errors.New("boom again")},
	}
	fb := &fakeFallback{result: Result{Text: "agent handled it"}}
	p := NewPipeline(testTable(), runner, testGovernor(), "bearer-token", fb)

	result, err := p.Run(context.Background(), "calendar", "book a meeting", nil)
	require.NoError(t, err)
	require.True(t, fb.called)
	require.Equal(t, "agent handled it", result.Text)
}

func TestRun_UnknownServiceGoesStraightToFallback(t *testing.T) {
	runner := &fakeRunner{}
	fb := &fakeFallback{result: Result{Text: "fallback"}}
	p := NewPipeline(testTable(), runner, testGovernor(), "bearer-token", fb)

	result, err := p.Run(context.Background(), "unknown-service", "do something", nil)
	require.NoError(t, err)
	require.True(t, fb.called)
	require.Equal(t, "fallback", result.Text)
}
