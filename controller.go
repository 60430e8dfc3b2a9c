package mdreveal

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"pkt.systems/mdreveal/internal/logging"
)

var (
	// ErrNotStarted reports an operation that needs Start to have been called.
	ErrNotStarted = errors.New("reveal not started")
	// ErrAlreadyStarted reports a second Start without an intervening Stop.
	ErrAlreadyStarted = errors.New("reveal already started")
	// ErrNotPrinting reports Pause outside the printing phase.
	ErrNotPrinting = errors.New("reveal not printing")
	// ErrIndexOutOfRange reports a resume index outside the buffer.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrClosed reports use of a closed controller.
	ErrClosed = errors.New("controller closed")
)

// Phase is the reveal state.
type Phase uint8

const (
	// PhaseIdle means nothing is being revealed: either Start has not been
	// called, or the reveal caught up with the buffer and waits for Append.
	PhaseIdle Phase = iota
	// PhasePrinting means ticks are advancing the cursor.
	PhasePrinting
	// PhasePaused means ticks are suspended and the cursor is kept.
	PhasePaused
	// PhaseStopped means the reveal was stopped; Start may be called again.
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePrinting:
		return "printing"
	case PhasePaused:
		return "paused"
	case PhaseStopped:
		return "stopped"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Controller reveals a FormatBuffer on a Surface a few characters at a time.
//
// A Controller is not safe for concurrent use. Every method, and every tick,
// must run on the thread of its Scheduler; use a Dispatcher such as Loop.Do to
// call in from other goroutines.
type Controller struct {
	cfg     controllerConfig
	surface Surface
	log     *log.Logger

	source        string
	full          FormatBuffer
	visible       FormatBuffer
	cursor        int
	chunkSize     int
	interval      time.Duration
	fadeWidth     int
	phase         Phase
	started       bool
	stoppedByUser bool
	streaming     bool
	destroyed     bool

	pending  Task
	cancels  []func()
	exposure []Element
}

// NewController binds a controller to surface.
func NewController(surface Surface, opts ...Option) (*Controller, error) {
	if surface == nil {
		return nil, fmt.Errorf("controller: surface is nil")
	}
	cfg := defaultControllerConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.scheduler == nil {
		return nil, fmt.Errorf("controller: scheduler is nil")
	}
	if o, ok := cfg.parser.(StreamStateObserver); ok {
		cfg.observers = append(cfg.observers, o)
	}
	logger := cfg.logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Controller{
		cfg:       cfg,
		surface:   surface,
		log:       logger.WithPrefix("reveal"),
		chunkSize: cfg.chunkSize,
		interval:  cfg.interval,
		fadeWidth: cfg.fadeWidth,
	}, nil
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase { return c.phase }

// Started reports whether Start has been called and the reveal not stopped.
func (c *Controller) Started() bool { return c.started }

// Cursor returns the number of characters revealed so far.
func (c *Controller) Cursor() int { return c.cursor }

// Source returns the accumulated source text.
func (c *Controller) Source() string { return c.source }

// Full returns the parsed buffer of the whole source.
func (c *Controller) Full() FormatBuffer { return c.full }

// Visible returns the buffer most recently shown on the surface.
func (c *Controller) Visible() FormatBuffer { return c.visible }

// Params returns the tick interval and chunk size.
func (c *Controller) Params() (time.Duration, int) { return c.interval, c.chunkSize }

// SetPrintParams changes pacing. Non-positive values leave the current
// setting unchanged. The new interval applies from the next tick.
func (c *Controller) SetPrintParams(interval time.Duration, chunkSize int) {
	if interval > 0 {
		c.interval = interval
	}
	if chunkSize > 0 {
		c.chunkSize = chunkSize
	}
}

// Start parses text and begins revealing it from startIndex.
func (c *Controller) Start(text string, startIndex int) error {
	if c.destroyed {
		return c.reject("start", ErrClosed)
	}
	if c.started {
		return c.reject("start", ErrAlreadyStarted)
	}
	c.cancelPending()
	c.setStreaming(true)
	c.source = SanitizeSource(text)
	c.full = c.parse(c.source)
	c.cursor = clampInt(startIndex, 0, c.full.Len())
	c.visible = FormatBuffer{}
	c.exposure = nil
	c.started = true
	c.stoppedByUser = false
	c.phase = PhasePrinting
	c.schedule(0)
	c.log.Debug("reveal started", logging.FieldLength, c.full.Len(), logging.FieldCursor, c.cursor)
	c.cfg.listener.OnPrintStart()
	return nil
}

// Append extends the source (or replaces it when replace is set), re-parses
// it and keeps revealing from the current cursor.
func (c *Controller) Append(text string, replace bool) error {
	if err := c.guard("append"); err != nil {
		return err
	}
	text = SanitizeSource(text)
	if replace {
		c.source = text
	} else {
		// A CRLF split across two appends loses its carriage return here.
		if strings.HasSuffix(c.source, "\r") && strings.HasPrefix(text, "\n") {
			c.source = c.source[:len(c.source)-1]
		}
		c.source += text
	}
	c.setStreaming(true)
	c.full = c.parse(c.source)
	if c.cursor > c.full.Len() {
		c.cursor = c.full.Len()
	}
	c.stoppedByUser = false
	wasPaused := c.phase == PhasePaused
	c.phase = PhasePrinting
	if c.pending == nil {
		c.schedule(0)
	}
	if wasPaused {
		c.cfg.listener.OnPrintResumed()
	}
	return nil
}

// Pause suspends ticking and keeps the cursor.
func (c *Controller) Pause() error {
	if err := c.guard("pause"); err != nil {
		return err
	}
	if c.phase != PhasePrinting {
		return c.reject("pause", ErrNotPrinting)
	}
	c.cancelPending()
	c.phase = PhasePaused
	c.setStreaming(false)
	c.cfg.listener.OnPrintPaused(c.cursor)
	return nil
}

// Resume continues revealing from the cursor.
func (c *Controller) Resume() error {
	return c.resume(c.cursor)
}

// ResumeFrom continues revealing from index.
func (c *Controller) ResumeFrom(index int) error {
	return c.resume(index)
}

func (c *Controller) resume(index int) error {
	if err := c.guard("resume"); err != nil {
		return err
	}
	if c.phase == PhasePrinting {
		return nil
	}
	if index < 0 || index > c.full.Len() {
		return c.reject("resume", fmt.Errorf("%w: %d not in [0, %d]", ErrIndexOutOfRange, index, c.full.Len()))
	}
	if c.phase == PhaseIdle && index >= c.full.Len() {
		return nil
	}
	c.cursor = index
	c.stoppedByUser = false
	c.phase = PhasePrinting
	c.setStreaming(true)
	c.schedule(0)
	c.cfg.listener.OnPrintResumed()
	return nil
}

// Stop ends the reveal. When text remains unrevealed, the visible prefix is
// followed by endMessage (or the configured default when empty) in the end
// message style.
func (c *Controller) Stop(endMessage string) error {
	if err := c.guard("stop"); err != nil {
		return err
	}
	c.cancelPending()
	c.started = false
	c.stoppedByUser = true
	if c.phase == PhaseIdle {
		c.phase = PhaseStopped
		return nil
	}
	c.phase = PhaseStopped
	msg := endMessage
	if msg == "" {
		msg = c.cfg.endMessage
	}
	printAll := c.cursor >= c.full.Len()-1
	var shown FormatBuffer
	if printAll {
		shown = ClearFade(c.full)
	} else {
		shown = ClearFade(Truncate(c.full, c.cursor))
		if msg != "" {
			var bd Builder
			bd.Styled(msg, c.cfg.endStyle...)
			shown = shown.Concat(bd.Build())
		}
	}
	c.visible = shown
	c.show(shown)
	c.setStreaming(false)
	c.log.Debug("reveal stopped", logging.FieldCursor, c.cursor, logging.FieldLength, c.full.Len())
	c.cfg.listener.OnPrintStop(printAll)
	return nil
}

// Snapshot captures the controller state.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Source:        c.source,
		Full:          c.full,
		Visible:       c.visible,
		Cursor:        c.cursor,
		ChunkSize:     c.chunkSize,
		Interval:      c.interval,
		FadeWidth:     c.fadeWidth,
		Phase:         c.phase,
		Started:       c.started,
		Printing:      c.phase == PhasePrinting,
		StoppedByUser: c.stoppedByUser,
	}
}

// Restore adopts every field of s, shows its visible prefix, and resumes
// ticking when s was printing and not stopped by the user.
func (c *Controller) Restore(s Snapshot) error {
	if c.destroyed {
		return c.reject("restore", ErrClosed)
	}
	c.cancelPending()
	c.source = s.Source
	c.full = s.Full
	c.cursor = clampInt(s.Cursor, 0, s.Full.Len())
	if s.ChunkSize > 0 {
		c.chunkSize = s.ChunkSize
	}
	if s.Interval > 0 {
		c.interval = s.Interval
	}
	if s.FadeWidth >= 0 {
		c.fadeWidth = s.FadeWidth
	}
	c.started = s.Started
	c.stoppedByUser = s.StoppedByUser
	c.phase = s.Phase
	if c.phase == PhasePrinting && c.stoppedByUser {
		c.phase = PhaseStopped
	}
	c.visible = s.Visible
	if c.visible.IsZero() && c.cursor > 0 {
		c.visible = c.prefix(c.cursor)
	}
	c.exposure = nil
	c.show(c.visible)
	if s.Printing && !s.StoppedByUser {
		c.started = true
		c.phase = PhasePrinting
		c.setStreaming(true)
		c.schedule(0)
	}
	return nil
}

// Track registers a cancellation token, such as one returned by an async
// resource fetch, to be invoked when the controller closes.
func (c *Controller) Track(cancel func()) {
	if cancel == nil {
		return
	}
	if c.destroyed {
		cancel()
		return
	}
	c.cancels = append(c.cancels, cancel)
}

// Close tears the controller down: the pending tick is cancelled, tracked
// tokens are fired and state is dropped. Ticks already queued are ignored.
func (c *Controller) Close() {
	if c.destroyed {
		return
	}
	c.destroyed = true
	c.cancelPending()
	cancels := c.cancels
	c.cancels = nil
	for _, cancel := range cancels {
		cancel()
	}
	c.setStreaming(false)
	c.started = false
	c.phase = PhaseStopped
	c.full = FormatBuffer{}
	c.visible = FormatBuffer{}
	c.source = ""
}

func (c *Controller) schedule(delay time.Duration) {
	c.cancelPending()
	var t Task
	t = c.cfg.scheduler.Post(delay, func() { c.tick(t) })
	c.pending = t
}

func (c *Controller) cancelPending() {
	if c.pending != nil {
		c.pending.Cancel()
		c.pending = nil
	}
}

func (c *Controller) tick(self Task) {
	if c.destroyed {
		c.log.Debug("dropping tick after close")
		return
	}
	if self == nil || c.pending != self {
		c.log.Debug("dropping stale tick")
		return
	}
	c.pending = nil
	if c.phase != PhasePrinting {
		return
	}
	end := c.cursor + c.chunkSize
	if end >= c.full.Len() {
		c.cursor = c.full.Len()
		c.phase = PhaseIdle
		c.visible = ClearFade(c.full)
		c.show(c.visible)
		c.setStreaming(false)
		c.cfg.listener.OnPrintStop(true)
		return
	}
	c.visible = c.prefix(end)
	c.cursor = end
	c.show(c.visible)
	if c.stoppedByUser {
		c.phase = PhaseStopped
		c.started = false
		c.setStreaming(false)
		c.cfg.listener.OnPrintStop(false)
		return
	}
	c.schedule(c.interval)
}

func (c *Controller) prefix(end int) FormatBuffer {
	return ApplyFade(Truncate(c.full, end), end, c.fadeWidth)
}

func (c *Controller) show(buf FormatBuffer) {
	c.surface.Show(buf)
	if c.cfg.exposure == nil {
		return
	}
	elements := Elements(buf)
	if slices.EqualFunc(elements, c.exposure, Element.sameTarget) {
		return
	}
	c.exposure = elements
	c.cfg.exposure.OnExposure(append([]Element(nil), elements...))
}

func (c *Controller) parse(source string) FormatBuffer {
	buf, err := c.cfg.parser.Parse(source)
	if err != nil {
		c.log.Error("parse failed, showing plain text", logging.FieldError, err)
		return PlainText(source)
	}
	if n := buf.Clamped(); n > 0 {
		c.log.Warn("clamped out-of-bounds formatting ranges", logging.FieldClamped, n, logging.FieldLength, buf.Len())
	}
	return buf
}

func (c *Controller) setStreaming(streaming bool) {
	if c.streaming == streaming {
		return
	}
	c.streaming = streaming
	for _, o := range c.cfg.observers {
		o.OnStreamStateChanged(streaming)
	}
}

func (c *Controller) guard(op string) error {
	if c.destroyed {
		return c.reject(op, ErrClosed)
	}
	if !c.started {
		return c.reject(op, ErrNotStarted)
	}
	return nil
}

func (c *Controller) reject(op string, err error) error {
	c.log.Error("ignoring call", logging.FieldOperation, op, logging.FieldPhase, c.phase, logging.FieldError, err)
	return fmt.Errorf("controller: %s: %w", op, err)
}
