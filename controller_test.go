package mdreveal

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkt.systems/mdreveal/internal/logging"
)

type recorder struct {
	shows     []FormatBuffer
	events    []string
	streaming []bool
	exposed   [][]Element
}

func (r *recorder) Show(buf FormatBuffer)       { r.shows = append(r.shows, buf) }
func (r *recorder) OnPrintStart()               { r.events = append(r.events, "start") }
func (r *recorder) OnPrintPaused(cursor int)    { r.events = append(r.events, fmt.Sprintf("paused:%d", cursor)) }
func (r *recorder) OnPrintResumed()             { r.events = append(r.events, "resumed") }
func (r *recorder) OnPrintStop(printAll bool)   { r.events = append(r.events, fmt.Sprintf("stop:%t", printAll)) }
func (r *recorder) OnStreamStateChanged(s bool) { r.streaming = append(r.streaming, s) }
func (r *recorder) OnExposure(e []Element)      { r.exposed = append(r.exposed, e) }

func (r *recorder) last() FormatBuffer {
	if len(r.shows) == 0 {
		return FormatBuffer{}
	}
	return r.shows[len(r.shows)-1]
}

func newTestController(t *testing.T, opts ...Option) (*Controller, *ManualScheduler, *recorder) {
	t.Helper()
	sched := NewManualScheduler()
	rec := &recorder{}
	base := []Option{
		WithScheduler(sched),
		WithListener(rec),
		WithStreamObserver(rec),
		WithLogger(logging.Discard()),
	}
	c, err := NewController(rec, append(base, opts...)...)
	require.NoError(t, err)
	return c, sched, rec
}

func TestNewControllerValidates(t *testing.T) {
	_, err := NewController(nil, WithScheduler(NewManualScheduler()))
	require.Error(t, err)
	_, err = NewController(SurfaceFunc(func(FormatBuffer) {}))
	require.Error(t, err)
}

func TestHelloWorldReveal(t *testing.T) {
	c, sched, rec := newTestController(t)
	require.NoError(t, c.Start("Hello World", 0))
	assert.Equal(t, PhasePrinting, c.Phase())

	sched.Advance(time.Second)

	require.Len(t, rec.shows, 11)
	for i := 0; i < 10; i++ {
		assert.Equal(t, "Hello World"[:i+1], rec.shows[i].Text())
		assert.Len(t, fades(rec.shows[i]), min(i+1, DefaultFadeWidth))
	}
	assert.Equal(t, "Hello World", rec.last().Text())
	assert.Empty(t, fades(rec.last()))
	assert.Equal(t, []string{"start", "stop:true"}, rec.events)
	assert.Equal(t, []bool{true, false}, rec.streaming)
	assert.Equal(t, PhaseIdle, c.Phase())
	assert.True(t, c.Started())
	assert.Equal(t, 11, c.Cursor())
	assert.Equal(t, 0, sched.Pending())
}

func TestRevealTiming(t *testing.T) {
	c, sched, rec := newTestController(t, WithInterval(40*time.Millisecond), WithChunkSize(2))
	require.NoError(t, c.Start("abcdefgh", 0))
	sched.Advance(0)
	require.Len(t, rec.shows, 1)
	assert.Equal(t, "ab", rec.last().Text())
	sched.Advance(39 * time.Millisecond)
	assert.Len(t, rec.shows, 1)
	sched.Advance(time.Millisecond)
	assert.Equal(t, "abcd", rec.last().Text())
	sched.Advance(80 * time.Millisecond)
	assert.Equal(t, "abcdefgh", rec.last().Text())
	assert.Equal(t, []string{"start", "stop:true"}, rec.events)
}

func TestStartIndex(t *testing.T) {
	c, sched, rec := newTestController(t)
	require.NoError(t, c.Start("Hello World", 6))
	sched.RunNext()
	assert.Equal(t, "Hello W", rec.last().Text())

	c2, sched2, rec2 := newTestController(t)
	require.NoError(t, c2.Start("Hi", -4))
	sched2.RunNext()
	assert.Equal(t, "H", rec2.last().Text())
}

func TestStartTwiceRejected(t *testing.T) {
	c, sched, _ := newTestController(t)
	require.NoError(t, c.Start("one", 0))
	sched.RunNext()
	err := c.Start("two", 0)
	require.ErrorIs(t, err, ErrAlreadyStarted)
	assert.Equal(t, "one", c.Source())
	assert.Equal(t, 1, c.Cursor())
}

func TestOperationsBeforeStart(t *testing.T) {
	c, sched, rec := newTestController(t)
	require.ErrorIs(t, c.Append("x", false), ErrNotStarted)
	require.ErrorIs(t, c.Pause(), ErrNotStarted)
	require.ErrorIs(t, c.Resume(), ErrNotStarted)
	require.ErrorIs(t, c.Stop(""), ErrNotStarted)
	assert.Equal(t, 0, sched.Pending())
	assert.Empty(t, rec.shows)
	assert.Empty(t, rec.events)
	assert.Equal(t, PhaseIdle, c.Phase())
}

func TestPauseResume(t *testing.T) {
	c, sched, rec := newTestController(t, WithInterval(10*time.Millisecond))
	require.NoError(t, c.Start("Hello World", 0))
	sched.Advance(20 * time.Millisecond)
	require.Equal(t, 3, c.Cursor())

	require.NoError(t, c.Pause())
	assert.Equal(t, PhasePaused, c.Phase())
	assert.Equal(t, 0, sched.Pending())
	shown := len(rec.shows)
	sched.Advance(time.Second)
	assert.Len(t, rec.shows, shown)
	require.ErrorIs(t, c.Pause(), ErrNotPrinting)

	require.NoError(t, c.Resume())
	require.NoError(t, c.Resume(), "resume while printing is a no-op")
	sched.RunNext()
	assert.Equal(t, "Hell", rec.last().Text())
	sched.Advance(time.Second)
	assert.Equal(t, "Hello World", rec.last().Text())
	assert.Equal(t, []string{"start", "paused:3", "resumed", "stop:true"}, rec.events)
	assert.Equal(t, []bool{true, false, true, false}, rec.streaming)
}

func TestResumeFrom(t *testing.T) {
	c, sched, rec := newTestController(t)
	require.NoError(t, c.Start("abcdef", 0))
	sched.RunAll(3)
	require.NoError(t, c.Pause())

	err := c.ResumeFrom(99)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.Equal(t, PhasePaused, c.Phase())
	require.ErrorIs(t, c.ResumeFrom(-1), ErrIndexOutOfRange)

	require.NoError(t, c.ResumeFrom(1))
	sched.RunNext()
	assert.Equal(t, "ab", rec.last().Text())
}

func TestResumeAfterCompletionIsNoop(t *testing.T) {
	c, sched, rec := newTestController(t)
	require.NoError(t, c.Start("ab", 0))
	sched.Advance(time.Second)
	require.NoError(t, c.Resume())
	assert.Equal(t, PhaseIdle, c.Phase())
	assert.Equal(t, 0, sched.Pending())

	require.NoError(t, c.ResumeFrom(0))
	assert.Equal(t, PhasePrinting, c.Phase())
	sched.Advance(time.Second)
	assert.Equal(t, "ab", rec.last().Text())
}

func TestStopMidReveal(t *testing.T) {
	c, sched, rec := newTestController(t)
	require.NoError(t, c.Start("Hello World", 0))
	sched.RunAll(3)

	require.NoError(t, c.Stop(""))
	last := rec.last()
	assert.Equal(t, "Hel"+DefaultEndMessage, last.Text())
	assert.Empty(t, fades(last))
	var styled []Attribute
	for _, r := range last.Ranges() {
		assert.Equal(t, 3, r.Start)
		assert.Equal(t, last.Len(), r.End)
		styled = append(styled, r.Attr)
	}
	assert.Equal(t, DefaultEndMessageStyle(), styled)
	assert.Equal(t, []string{"start", "stop:false"}, rec.events)
	assert.Equal(t, PhaseStopped, c.Phase())
	assert.False(t, c.Started())

	shown := len(rec.shows)
	sched.Advance(time.Second)
	assert.Len(t, rec.shows, shown, "stop is terminal")
	require.ErrorIs(t, c.Stop(""), ErrNotStarted)
	require.ErrorIs(t, c.Append("more", false), ErrNotStarted)

	require.NoError(t, c.Start("Again", 0))
	sched.Advance(time.Second)
	assert.Equal(t, "Again", rec.last().Text())
}

func TestStopCustomMessageKeepsFormatting(t *testing.T) {
	parser := ParserFunc(func(src string) (FormatBuffer, error) {
		return NewFormatBuffer(src, Range{Start: 0, End: len([]rune(src)), Attr: Bold{}}), nil
	})
	c, sched, rec := newTestController(t, WithParser(parser), WithEndMessage("[cut]"))
	require.NoError(t, c.Start("Hello World", 0))
	sched.RunAll(4)
	require.NoError(t, c.Pause())
	require.NoError(t, c.Stop(" (halted)"))
	last := rec.last()
	assert.Equal(t, "Hell (halted)", last.Text())
	require.NotEmpty(t, last.Ranges())
	assert.Equal(t, Range{Start: 0, End: 4, Attr: Bold{}}, last.Ranges()[0])
	assert.Equal(t, []string{"start", "paused:4", "stop:false"}, rec.events)
}

func TestStopNearEndPrintsAll(t *testing.T) {
	c, sched, rec := newTestController(t)
	require.NoError(t, c.Start("abc", 0))
	sched.RunAll(2)
	require.Equal(t, 2, c.Cursor())
	require.NoError(t, c.Stop(""))
	assert.Equal(t, "abc", rec.last().Text())
	assert.Equal(t, []string{"start", "stop:true"}, rec.events)
}

func TestStopAfterCompletionIsSilent(t *testing.T) {
	c, sched, rec := newTestController(t)
	require.NoError(t, c.Start("abc", 0))
	sched.Advance(time.Second)
	shown := len(rec.shows)
	require.NoError(t, c.Stop(""))
	assert.Len(t, rec.shows, shown)
	assert.Equal(t, []string{"start", "stop:true"}, rec.events)
	assert.Equal(t, PhaseStopped, c.Phase())
	assert.False(t, c.Started())
}

func TestAppendContinuity(t *testing.T) {
	c, sched, rec := newTestController(t)
	require.NoError(t, c.Start("Hello", 0))
	sched.RunAll(3)
	require.Equal(t, 3, c.Cursor())

	require.NoError(t, c.Append(" World", false))
	assert.Equal(t, 3, c.Cursor())
	assert.Equal(t, 1, sched.Pending(), "append never schedules a second tick")
	require.NoError(t, c.Append("!", false))
	assert.Equal(t, 1, sched.Pending())

	sched.RunNext()
	assert.Equal(t, "Hell", rec.last().Text())
	sched.Advance(time.Second)
	assert.Equal(t, "Hello World!", rec.last().Text())
	assert.Equal(t, []string{"start", "stop:true"}, rec.events)
}

func TestAppendReplaceClampsCursor(t *testing.T) {
	c, sched, rec := newTestController(t)
	require.NoError(t, c.Start("Hello World", 0))
	sched.RunAll(8)
	require.NoError(t, c.Append("Hi", true))
	assert.Equal(t, 2, c.Cursor())
	assert.Equal(t, "Hi", c.Source())
	sched.Advance(time.Second)
	assert.Equal(t, "Hi", rec.last().Text())
}

func TestAppendAfterCompletionResumes(t *testing.T) {
	c, sched, rec := newTestController(t)
	require.NoError(t, c.Start("Hi", 0))
	sched.Advance(time.Second)
	require.Equal(t, PhaseIdle, c.Phase())

	require.NoError(t, c.Append(" there", false))
	assert.Equal(t, PhasePrinting, c.Phase())
	sched.RunNext()
	assert.Equal(t, "Hi ", rec.last().Text())
	sched.Advance(time.Second)
	assert.Equal(t, "Hi there", rec.last().Text())
	assert.Equal(t, []string{"start", "stop:true", "stop:true"}, rec.events)
	assert.Equal(t, []bool{true, false, true, false}, rec.streaming)
}

func TestAppendWhilePausedResumes(t *testing.T) {
	c, sched, rec := newTestController(t)
	require.NoError(t, c.Start("abc", 0))
	sched.RunNext()
	require.NoError(t, c.Pause())
	require.NoError(t, c.Append("def", false))
	assert.Equal(t, PhasePrinting, c.Phase())
	sched.Advance(time.Second)
	assert.Equal(t, "abcdef", rec.last().Text())
	assert.Equal(t, []string{"start", "paused:1", "resumed", "stop:true"}, rec.events)
}

func TestMonotonicRevealAcrossAppends(t *testing.T) {
	c, sched, rec := newTestController(t, WithChunkSize(2))
	require.NoError(t, c.Start("The quick ", 0))
	for _, chunk := range []string{"brown ", "fox ", "jumps ", "over ", "the lazy dog"} {
		sched.RunAll(2)
		require.NoError(t, c.Append(chunk, false))
	}
	sched.Advance(time.Minute)
	prev := 0
	for _, buf := range rec.shows {
		assert.GreaterOrEqual(t, buf.Len(), prev)
		prev = buf.Len()
	}
	assert.Equal(t, "The quick brown fox jumps over the lazy dog", rec.last().Text())
}

func TestRevealIsDeterministic(t *testing.T) {
	run := func() []FormatBuffer {
		c, sched, rec := newTestController(t, WithChunkSize(3), WithFadeWidth(4))
		require.NoError(t, c.Start("deterministic output", 0))
		sched.Advance(40 * time.Millisecond)
		require.NoError(t, c.Append(" with more", false))
		sched.Advance(time.Second)
		return rec.shows
	}
	a, b := run(), run()
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.True(t, a[i].Equal(b[i]), "show %d differs", i)
	}
}

func TestSetPrintParams(t *testing.T) {
	c, sched, rec := newTestController(t)
	require.NoError(t, c.Start("abcdefghij", 0))
	sched.RunNext()
	c.SetPrintParams(time.Second, 4)
	c.SetPrintParams(0, 0)
	interval, chunk := c.Params()
	assert.Equal(t, time.Second, interval)
	assert.Equal(t, 4, chunk)
	sched.Advance(DefaultInterval)
	assert.Equal(t, "abcde", rec.last().Text())
	sched.Advance(time.Second)
	assert.Equal(t, "abcdefghi", rec.last().Text())
}

func TestSnapshotRestoreFidelity(t *testing.T) {
	c, sched, rec := newTestController(t, WithChunkSize(2), WithFadeWidth(3))
	require.NoError(t, c.Start("Hello World", 0))
	sched.RunAll(2)
	snap := c.Snapshot()
	assert.Equal(t, 4, snap.Cursor)
	assert.True(t, snap.Printing)
	assert.True(t, snap.Visible.Equal(rec.last()))
	c.Close()

	c2, sched2, rec2 := newTestController(t)
	require.NoError(t, c2.Restore(snap))
	require.NotEmpty(t, rec2.shows)
	assert.True(t, rec2.shows[0].Equal(snap.Visible))
	assert.Equal(t, snap.Cursor, c2.Cursor())
	_, chunk := c2.Params()
	assert.Equal(t, 2, chunk)

	sched2.RunNext()
	assert.Equal(t, "Hello ", rec2.last().Text())
	sched2.Advance(time.Second)
	assert.Equal(t, "Hello World", rec2.last().Text())
	assert.Equal(t, []string{"stop:true"}, rec2.events)
}

func TestRestoreStoppedDoesNotTick(t *testing.T) {
	c, sched, _ := newTestController(t)
	require.NoError(t, c.Start("Hello World", 0))
	sched.RunAll(3)
	require.NoError(t, c.Stop(""))
	snap := c.Snapshot()

	c2, sched2, rec2 := newTestController(t)
	require.NoError(t, c2.Restore(snap))
	assert.Equal(t, 0, sched2.Pending())
	assert.True(t, rec2.last().Equal(snap.Visible))
	assert.Equal(t, PhaseStopped, c2.Phase())
}

func TestRestoreCancelsPendingTick(t *testing.T) {
	c, sched, rec := newTestController(t)
	require.NoError(t, c.Start("abcdef", 0))
	sched.RunNext()
	paused := c.Snapshot()
	paused.Printing = false
	paused.Phase = PhasePaused
	require.NoError(t, c.Restore(paused))
	assert.Equal(t, 0, sched.Pending())
	assert.Equal(t, "a", rec.last().Text())
}

func TestCloseDropsTicks(t *testing.T) {
	c, sched, rec := newTestController(t)
	cancelled := 0
	c.Track(func() { cancelled++ })
	require.NoError(t, c.Start("Hello", 0))
	sched.RunNext()
	shown := len(rec.shows)
	c.Close()
	c.Close()
	assert.Equal(t, 1, cancelled)
	assert.Equal(t, 0, sched.Pending())
	sched.Advance(time.Second)
	assert.Len(t, rec.shows, shown)
	require.ErrorIs(t, c.Start("x", 0), ErrClosed)
	require.ErrorIs(t, c.Append("x", false), ErrClosed)
	require.ErrorIs(t, c.Restore(Snapshot{}), ErrClosed)
	c.Track(func() { cancelled++ })
	assert.Equal(t, 2, cancelled)
}

type leakyScheduler struct {
	fns []func()
}

type leakyTask struct{ id int }

func (*leakyTask) Cancel() bool { return true }

func (s *leakyScheduler) Post(_ time.Duration, fn func()) Task {
	s.fns = append(s.fns, fn)
	return &leakyTask{id: len(s.fns)}
}

func TestStaleTickIsDropped(t *testing.T) {
	sched := &leakyScheduler{}
	rec := &recorder{}
	c, err := NewController(rec, WithScheduler(sched), WithLogger(logging.Discard()))
	require.NoError(t, err)
	require.NoError(t, c.Start("Hello", 0))
	require.Len(t, sched.fns, 1)
	sched.fns[0]()
	require.Len(t, sched.fns, 2)
	require.NoError(t, c.Pause())

	sched.fns[1]()
	assert.Len(t, rec.shows, 1, "tick cancelled by pause must not run")
	sched.fns[0]()
	assert.Len(t, rec.shows, 1, "old tick must not run twice")
	assert.Equal(t, 1, c.Cursor())
}

func TestParseErrorFallsBackToPlainText(t *testing.T) {
	parser := ParserFunc(func(string) (FormatBuffer, error) {
		return FormatBuffer{}, errors.New("boom")
	})
	c, sched, rec := newTestController(t, WithParser(parser))
	require.NoError(t, c.Start("*raw*", 0))
	sched.Advance(time.Second)
	assert.Equal(t, "*raw*", rec.last().Text())
}

func TestStartSanitizesSource(t *testing.T) {
	c, sched, rec := newTestController(t)
	require.NoError(t, c.Start("a\x00b\r\nc", 0))
	sched.Advance(time.Second)
	assert.Equal(t, "ab\nc", rec.last().Text())
}

func TestAppendJoinsSplitCRLF(t *testing.T) {
	c, sched, rec := newTestController(t)
	require.NoError(t, c.Start("a\r", 0))
	require.NoError(t, c.Append("\nb", false))
	assert.Equal(t, "a\nb", c.Source())
	sched.Advance(time.Second)
	assert.Equal(t, "a\nb", rec.last().Text())

	require.NoError(t, c.Append("\r", false))
	require.NoError(t, c.Append("c", false))
	assert.Equal(t, "a\nb\rc", c.Source(), "a lone carriage return is kept")
}

func TestParserStreamObserverRegistered(t *testing.T) {
	obs := &recorder{}
	parser := struct {
		Parser
		StreamStateObserver
	}{PlainParser, obs}
	c, sched, _ := newTestController(t, WithParser(parser))
	require.NoError(t, c.Start("ab", 0))
	sched.Advance(time.Second)
	assert.Equal(t, []bool{true, false}, obs.streaming)
}

func TestExposureReportsChanges(t *testing.T) {
	parser := ParserFunc(func(src string) (FormatBuffer, error) {
		var bd Builder
		bd.WriteString("see ")
		bd.Styled("docs", Link{URL: "https://example.com/docs"})
		bd.WriteString(" and ")
		bd.Styled("\ufffc", Image{Src: "https://example.com/a.png", Alt: "chart"})
		return bd.Build(), nil
	})
	exp := &recorder{}
	c, sched, rec := newTestController(t, WithParser(parser), WithExposureListener(exp))
	require.NoError(t, c.Start("ignored", 0))
	sched.Advance(time.Second)
	require.Len(t, exp.exposed, 2)
	assert.Equal(t, []Element{{Kind: ElementLink, URL: "https://example.com/docs", Text: "d", Start: 4, End: 5}}, exp.exposed[0])
	require.Len(t, exp.exposed[1], 2)
	assert.Equal(t, ElementImage, exp.exposed[1][1].Kind)
	assert.Equal(t, "chart", exp.exposed[1][1].Text)
	assert.Equal(t, "see docs and \ufffc", rec.last().Text())
}
