package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"pkt.systems/mdreveal"
	"pkt.systems/mdreveal/config"
	"pkt.systems/mdreveal/fetch"
	"pkt.systems/mdreveal/internal/logging"
	"pkt.systems/mdreveal/store"
	"pkt.systems/mdreveal/styler"
	"pkt.systems/mdreveal/termview"
	"pkt.systems/mdreveal/tuiview"
)

const (
	feedChunk    = 256
	storeTimeout = 5 * time.Second
)

type sessionConfig struct {
	cfg    *config.Config
	opts   *options
	args   []string
	stdin  io.Reader
	stdout io.Writer
	log    *log.Logger
}

// session wires one reveal: input feeding, the controller on its loop, the
// surface, snapshot persistence and image fetching. Every field below the
// loop is touched only on the loop goroutine.
type session struct {
	sessionConfig
	key      string
	loop     *mdreveal.Loop
	ctrl     *mdreveal.Controller
	styler   *styler.Styler
	surface  surface
	screen   *screenSurface
	store    *store.SQLite
	fetcher  *fetch.Fetcher
	closers  []io.Closer
	done     chan struct{}
	ctx      context.Context
	feedDone bool
	finished bool
	seen     map[string]bool
	exit     int
}

func newSession(ctx context.Context, sc sessionConfig) (*session, error) {
	s := &session{
		sessionConfig: sc,
		key:           sc.opts.key,
		loop:          mdreveal.NewLoop(),
		done:          make(chan struct{}),
		ctx:           ctx,
		seen:          make(map[string]bool),
	}
	if s.key == "" {
		s.key = sessionKey(sc.args)
	}
	theme, _ := styler.ThemeByName(sc.cfg.Theme)
	styles := theme.Styles()
	s.styler = styler.New(styler.WithTheme(theme), styler.WithLogger(sc.log))

	surf, err := s.openSurface(styles)
	if err != nil {
		s.close()
		return nil, err
	}
	s.surface = surf

	opts := append(sc.cfg.ControllerOptions(),
		mdreveal.WithParser(s.styler),
		mdreveal.WithScheduler(s.loop),
		mdreveal.WithLogger(sc.log),
		mdreveal.WithListener(mdreveal.ListenerFuncs{Stop: s.onStop}),
	)
	if sc.opts.fetchImages {
		s.fetcher, err = fetch.New(fetch.Config{Dispatcher: s.loop, Logger: sc.log})
		if err != nil {
			s.close()
			return nil, err
		}
		opts = append(opts, mdreveal.WithExposureListener(s))
	}
	s.ctrl, err = mdreveal.NewController(surf, opts...)
	if err != nil {
		s.close()
		return nil, err
	}
	if sc.cfg.StateDB != "" {
		s.store, err = store.OpenSQLite(normalizePath(sc.cfg.StateDB))
		if err != nil {
			s.close()
			return nil, err
		}
		s.closers = append(s.closers, s.store)
	}
	return s, nil
}

func (s *session) openSurface(styles styler.Styles) (surface, error) {
	if s.opts.tui {
		screen, err := openScreen()
		if err != nil {
			return nil, err
		}
		ss := &screenSurface{
			View:   tuiview.New(screen, tuiview.WithColors(styles.Text, styles.Background)),
			screen: screen,
			quit:   make(chan struct{}),
		}
		s.screen = ss
		return ss, nil
	}
	out, closer, err := resolveOutput(s.opts.outPath, s.stdout)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	if closer != nil {
		s.closers = append(s.closers, closer)
	}
	osc8, err := resolveOSC8(s.cfg.OSC8)
	if err != nil {
		return nil, err
	}
	width := s.cfg.Width
	if width == 0 {
		width = resolveWidth(0, out)
	}
	view := termview.New(out,
		termview.WithWidth(width),
		termview.WithOSC8(osc8 && isTerminal(out)),
		termview.WithColors(styles.Text, styles.Background),
		termview.WithLogger(s.log),
	)
	if isTerminal(out) {
		return liveSurface{View: view}, nil
	}
	return &frameSurface{view: view, w: out}, nil
}

func (s *session) run(ctx context.Context) int {
	defer s.close()

	var restored *mdreveal.PortableSnapshot
	if s.opts.resume {
		p, err := s.load(ctx)
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.log.Warn("nothing saved to resume, starting over", logging.FieldKey, s.key)
		case err != nil:
			s.log.Error("load snapshot", logging.FieldKey, s.key, logging.FieldError, err)
			return 1
		default:
			restored = &p
		}
	}

	if restored != nil {
		p := *restored
		s.loop.Do(func() { s.restore(p) })
	} else {
		reader, closer, err := openInputs(ctx, s.args, s.stdin)
		if err != nil {
			s.log.Error("open input", logging.FieldError, err)
			return 1
		}
		if closer != nil {
			s.closers = append(s.closers, closer)
		}
		go s.feed(ctx, reader)
	}
	if s.opts.stopAfter > 0 {
		s.loop.Post(s.opts.stopAfter, s.interrupt)
	}
	if s.screen != nil {
		go s.screen.pollKeys(s.loop, s.interrupt, s.togglePause)
	}
	go func() {
		select {
		case <-ctx.Done():
			s.loop.Do(s.interrupt)
		case <-s.done:
		}
	}()

	_ = s.loop.Run(context.Background())
	close(s.done)
	if s.fetcher != nil {
		s.fetcher.Close()
	}
	if err := s.surface.finish(ctx); err != nil {
		s.log.Error("finish output", logging.FieldError, err)
		return 1
	}
	return s.exit
}

func (s *session) feed(ctx context.Context, r io.Reader) {
	req := mdreveal.FeedRequest{
		Reader:          r,
		Controller:      s.ctrl,
		Dispatcher:      s.loop,
		ChunkSize:       feedChunk,
		KeepFrontMatter: s.opts.keepFrontMatter,
	}
	if s.opts.simulate {
		req.ChunkSize = s.cfg.Simulate.ChunkSize
		req.Delay = s.cfg.Simulate.Delay
	}
	err := mdreveal.Feed(ctx, req)
	s.loop.Do(func() { s.feedFinished(err) })
}

func (s *session) feedFinished(err error) {
	s.feedDone = true
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Error("read input", logging.FieldError, err)
		s.exit = 1
		s.interrupt()
		return
	}
	switch {
	case !s.ctrl.Started():
		s.finish()
	case s.ctrl.Phase() == mdreveal.PhaseIdle:
		s.finish()
	}
}

func (s *session) restore(p mdreveal.PortableSnapshot) {
	s.feedDone = true
	p.Started = true
	p.Printing = true
	p.Phase = mdreveal.PhasePrinting
	p.StoppedByUser = false
	snap, err := mdreveal.Rehydrate(p, s.styler)
	if err == nil {
		err = s.ctrl.Restore(snap)
	}
	if err != nil {
		s.log.Error("restore snapshot", logging.FieldKey, s.key, logging.FieldError, err)
		s.exit = 1
		s.finish()
		return
	}
	s.log.Info("resuming", logging.FieldKey, s.key, logging.FieldCursor, snap.Cursor, logging.FieldLength, snap.Full.Len())
}

func (s *session) onStop(bool) {
	if s.ctrl.Phase() == mdreveal.PhaseStopped || s.feedDone {
		s.finish()
	}
}

func (s *session) interrupt() {
	if s.finished {
		s.release()
		return
	}
	if s.ctrl.Started() {
		_ = s.ctrl.Stop(s.cfg.EndMessage)
	}
	s.finish()
}

func (s *session) togglePause() {
	if s.finished {
		s.release()
		return
	}
	switch s.ctrl.Phase() {
	case mdreveal.PhasePrinting:
		_ = s.ctrl.Pause()
	case mdreveal.PhasePaused:
		_ = s.ctrl.Resume()
	}
}

func (s *session) finish() {
	if s.finished {
		return
	}
	s.finished = true
	s.persist()
	s.ctrl.Close()
	s.loop.Stop()
}

// release lets a full screen surface close once the reveal is over.
func (s *session) release() {
	if s.screen != nil {
		s.screen.closeQuit()
	}
}

// persist saves an unfinished reveal and forgets a finished one.
func (s *session) persist() {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	snap := s.ctrl.Snapshot()
	if s.feedDone && snap.Cursor >= snap.Full.Len() {
		if err := s.store.Delete(ctx, s.key); err != nil {
			s.log.Warn("forget snapshot", logging.FieldKey, s.key, logging.FieldError, err)
		}
		return
	}
	if err := s.store.Save(ctx, s.key, snap.Portable()); err != nil {
		s.log.Error("save snapshot", logging.FieldKey, s.key, logging.FieldError, err)
		s.exit = 1
		return
	}
	s.log.Info("reveal saved, continue with --resume", logging.FieldKey, s.key, logging.FieldCursor, snap.Cursor)
}

func (s *session) load(ctx context.Context) (mdreveal.PortableSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	return s.store.Load(ctx, s.key)
}

// OnExposure fetches remote images the first time they are revealed.
func (s *session) OnExposure(elements []mdreveal.Element) {
	for _, el := range elements {
		if el.Kind != mdreveal.ElementImage || s.seen[el.URL] {
			continue
		}
		u, err := url.Parse(el.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			continue
		}
		s.seen[el.URL] = true
		target := el.URL
		s.ctrl.Track(s.fetcher.Fetch(s.ctx, target, func(r fetch.Result) {
			if r.Err != nil {
				s.log.Warn("image unavailable", logging.FieldURL, target, logging.FieldError, r.Err)
				return
			}
			s.log.Debug("image fetched", logging.FieldURL, target, logging.FieldLength, len(r.Body))
		}))
	}
}

func (s *session) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i].Close()
	}
	s.closers = nil
}
