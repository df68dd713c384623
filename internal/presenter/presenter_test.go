package presenter

import (
	"strings"
	"testing"
	"time"

	"github.com/livia-chatops/livia/internal/config"
	"github.com/stretchr/testify/require"
)

type fakeEditor struct {
	edits []string
}

func (f *fakeEditor) EditMessage(channelID, messageTS, text string) error {
	f.edits = append(f.edits, text)
	return nil
}

func testCfg() *config.SystemConfig {
	cfg := config.DefaultSystemConfig()
	cfg.PresenterMinCharsDelta = 10
	cfg.PresenterMinIntervalMs = 500
	cfg.PresenterMaxStreamSeconds = 120
	cfg.PresenterMaxResponseChars = 8000
	cfg.PresenterMaxUpdates = 200
	return cfg
}

func TestPresenter_SendsHeaderBeforeFirstDelta(t *testing.T) {
	ed := &fakeEditor{}
	p := New(ed, testCfg(), "C1", "ts1", "hello", false, false, "gpt-4.1-mini")

	p.OnTextDelta("hello world this is long enough", "hello world this is long enough")

	require.Len(t, ed.edits, 2)
	require.Contains(t, ed.edits[0], "⛭ gpt-4.1-mini")
	require.Contains(t, ed.edits[1], "hello world this is long enough")
}

func TestPresenter_SkipsUpdateBelowCharsAndIntervalThreshold(t *testing.T) {
	ed := &fakeEditor{}
	p := New(ed, testCfg(), "C1", "ts1", "hi", false, false, "gpt-4.1-mini")
	p.lastEditAt = time.Now()

	p.OnTextDelta("a", "a")
	require.Len(t, ed.edits, 1, "only the header edit should have fired")
}

func TestPresenter_EmptyDeltaAlwaysFlushes(t *testing.T) {
	ed := &fakeEditor{}
	p := New(ed, testCfg(), "C1", "ts1", "hi", false, false, "gpt-4.1-mini")
	p.lastEditAt = time.Now()

	p.OnTextDelta("", "final")
	require.Len(t, ed.edits, 2)
}

func TestPresenter_CircuitBreakerTripsOnLength(t *testing.T) {
	ed := &fakeEditor{}
	cfg := testCfg()
	cfg.PresenterMaxResponseChars = 10
	p := New(ed, cfg, "C1", "ts1", "hi", false, false, "gpt-4.1-mini")

	p.OnTextDelta("this text is definitely over ten characters", "this text is definitely over ten characters")
	require.True(t, p.Tripped())

	before := len(ed.edits)
	p.OnTextDelta("more", "this text is definitely over ten charactersmore")
	require.Len(t, ed.edits, before, "no further edits once tripped")
}

func TestPresenter_CircuitBreakerTripsOnRepetition(t *testing.T) {
	ed := &fakeEditor{}
	p := New(ed, testCfg(), "C1", "ts1", "hi", false, false, "gpt-4.1-mini")

	repeatedTail := strings.Repeat("x", 50)
	full := strings.Repeat("a", 60) + repeatedTail + repeatedTail
	p.OnTextDelta(full, full)
	require.True(t, p.Tripped())
}

func TestPresenter_FinishAppendsMemoryWarningAtLimit(t *testing.T) {
	ed := &fakeEditor{}
	p := New(ed, testCfg(), "C1", "ts1", "hi", false, false, "gpt-4.1-mini")

	err := p.Finish("the final answer", true)
	require.NoError(t, err)
	require.Contains(t, ed.edits[len(ed.edits)-1], "context limit")
}
