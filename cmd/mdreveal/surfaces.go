package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
	"pkt.systems/mdreveal"
	"pkt.systems/mdreveal/config"
	"pkt.systems/mdreveal/termview"
	"pkt.systems/mdreveal/tuiview"
)

// surface is a mdreveal.Surface the session can close down once the reveal
// is over.
type surface interface {
	mdreveal.Surface
	finish(ctx context.Context) error
}

// liveSurface redraws in place on a terminal.
type liveSurface struct {
	*termview.View
}

func (s liveSurface) finish(context.Context) error {
	return s.View.Finish()
}

// frameSurface keeps only the latest frame and writes it once at the end,
// for output that is not a terminal.
type frameSurface struct {
	view *termview.View
	w    io.Writer
	last mdreveal.FormatBuffer
}

func (s *frameSurface) Show(buf mdreveal.FormatBuffer) {
	s.last = buf
}

func (s *frameSurface) finish(context.Context) error {
	if s.last.Len() == 0 {
		return nil
	}
	if _, err := io.WriteString(s.w, s.view.Render(s.last)+"\n"); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// openScreen is replaced in tests with a simulation screen.
var openScreen = func() (tcell.Screen, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("open screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("init screen: %w", err)
	}
	return screen, nil
}

// screenSurface draws full screen with tcell. After the reveal it waits for
// a key before restoring the terminal.
type screenSurface struct {
	*tuiview.View
	screen tcell.Screen
	quit   chan struct{}
	once   sync.Once
}

func (s *screenSurface) closeQuit() {
	s.once.Do(func() { close(s.quit) })
}

func (s *screenSurface) finish(ctx context.Context) error {
	select {
	case <-s.quit:
	case <-ctx.Done():
	}
	s.screen.Fini()
	return nil
}

// pollKeys translates screen events into session actions until the screen
// is finalised. Keys pressed after the loop has stopped release finish.
func (s *screenSurface) pollKeys(loop *mdreveal.Loop, interrupt, toggle func()) {
	for {
		switch ev := s.screen.PollEvent().(type) {
		case nil:
			return
		case *tcell.EventResize:
			loop.Do(s.Redraw)
		case *tcell.EventKey:
			switch {
			case ev.Key() == tcell.KeyEscape, ev.Key() == tcell.KeyCtrlC, ev.Key() == tcell.KeyEnter, ev.Rune() == 'q':
				if !loop.Do(interrupt) {
					s.closeQuit()
				}
			case ev.Rune() == ' ':
				if !loop.Do(toggle) {
					s.closeQuit()
				}
			}
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func resolveWidth(width int, out io.Writer) int {
	if width > 0 {
		return width
	}
	return terminalWidth(out, defaultWidth)
}

func terminalWidth(out io.Writer, fallback int) int {
	if f, ok := out.(*os.File); ok {
		fd := int(f.Fd())
		if term.IsTerminal(fd) {
			if w, _, err := term.GetSize(fd); err == nil && w > 0 {
				return w
			}
		}
	}
	if value := os.Getenv("COLUMNS"); value != "" {
		if w, err := strconv.Atoi(value); err == nil && w > 0 {
			return w
		}
	}
	return fallback
}

func normalizeOSC8(mode string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "auto":
		return config.OSC8Auto, nil
	case "on", "true", "1", "yes":
		return config.OSC8On, nil
	case "off", "false", "0", "no":
		return config.OSC8Off, nil
	default:
		return "", fmt.Errorf("expected auto|on|off")
	}
}

func resolveOSC8(mode string) (bool, error) {
	m, err := normalizeOSC8(mode)
	if err != nil {
		return false, err
	}
	switch m {
	case config.OSC8On:
		return true, nil
	case config.OSC8Off:
		return false, nil
	default:
		return termview.DetectOSC8Support(), nil
	}
}
