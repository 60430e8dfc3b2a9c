package mdreveal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"
)

// FeedRequest configures Feed.
type FeedRequest struct {
	Reader     io.Reader
	Controller *Controller
	Dispatcher Dispatcher
	// ChunkSize is the number of runes handed to the controller per call.
	ChunkSize int
	// Delay is the pause between chunks, mimicking token arrival.
	Delay time.Duration
	// StartIndex is passed to Start with the first chunk.
	StartIndex int
	// Append sends every chunk with Append, for controllers that are already
	// started (a restored session, for example).
	Append bool
	// KeepFrontMatter disables stripping of a leading front matter block.
	KeepFrontMatter bool
}

// Feed reads text from Reader and streams it into Controller in ChunkSize
// rune chunks, the way a model streams tokens. Every controller call runs
// through Dispatcher. Feed returns once the input is exhausted; revealing
// continues on the controller's scheduler.
func Feed(ctx context.Context, req FeedRequest) error {
	if req.Reader == nil {
		return fmt.Errorf("feed: Reader is nil")
	}
	if req.Controller == nil {
		return fmt.Errorf("feed: Controller is nil")
	}
	if req.Dispatcher == nil {
		return fmt.Errorf("feed: Dispatcher is nil")
	}
	if req.ChunkSize <= 0 {
		return fmt.Errorf("feed: ChunkSize must be > 0")
	}
	f := feeder{req: req, started: req.Append}
	if req.KeepFrontMatter {
		f.fm.decided = true
	}
	reader := bufio.NewReader(req.Reader)
	buf := make([]rune, 0, req.ChunkSize)
	for {
		r, size, err := reader.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("feed: read: %w", err)
		}
		if r == utf8.RuneError && size == 1 {
			continue
		}
		if isControlRune(r) {
			continue
		}
		buf = append(buf, r)
		if len(buf) >= req.ChunkSize {
			if err := f.send(ctx, f.fm.push(string(buf))); err != nil {
				return err
			}
			buf = buf[:0]
		}
	}
	tail := f.fm.push(string(buf)) + f.fm.flush()
	return f.send(ctx, tail)
}

type feeder struct {
	req     FeedRequest
	fm      frontMatter
	started bool
}

func (f *feeder) send(ctx context.Context, text string) error {
	for text != "" {
		chunk := text
		if n := f.req.ChunkSize; utf8.RuneCountInString(chunk) > n {
			chunk = string([]rune(chunk)[:n])
		}
		text = text[len(chunk):]
		if err := f.dispatch(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (f *feeder) dispatch(ctx context.Context, chunk string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	ctrl := f.req.Controller
	first := !f.started
	f.started = true
	ok := f.req.Dispatcher.Do(func() {
		if first {
			_ = ctrl.Start(chunk, f.req.StartIndex)
			return
		}
		_ = ctrl.Append(chunk, false)
	})
	if !ok {
		return fmt.Errorf("feed: dispatcher stopped")
	}
	if f.req.Delay <= 0 {
		return nil
	}
	timer := time.NewTimer(f.req.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("feed: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
