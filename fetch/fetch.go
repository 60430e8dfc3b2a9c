// Package fetch downloads resources referenced by revealed text (images,
// link targets) off the loop goroutine and hands the results back through a
// mdreveal.Dispatcher, so callbacks run on the same goroutine as the
// controller.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"
	"pkt.systems/mdreveal"
	"pkt.systems/mdreveal/internal/logging"
)

const (
	// DefaultWorkers bounds concurrent requests when Config.Workers is unset.
	DefaultWorkers = 4
	// DefaultMaxBytes caps a response body when Config.MaxBytes is unset.
	DefaultMaxBytes = 8 << 20
)

// ErrTooLarge is reported when a body exceeds Config.MaxBytes.
var ErrTooLarge = errors.New("fetch: response too large")

// Config configures a Fetcher.
type Config struct {
	Client     *http.Client
	Workers    int64
	Dispatcher mdreveal.Dispatcher
	MaxBytes   int64
	Logger     *log.Logger
}

// Result is the outcome of one fetch.
type Result struct {
	URL         string
	Status      int
	ContentType string
	Body        []byte
	Err         error
}

// CancelFunc abandons a fetch. The callback of an abandoned fetch never runs.
// It is safe to call more than once and after completion.
type CancelFunc func()

// Fetcher runs HTTP GETs on a bounded set of goroutines.
type Fetcher struct {
	client   *http.Client
	dispatch mdreveal.Dispatcher
	maxBytes int64
	sem      *semaphore.Weighted
	log      *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Fetcher. A Dispatcher is required.
func New(cfg Config) (*Fetcher, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("fetch: Dispatcher is nil")
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Fetcher{
		client:   cfg.Client,
		dispatch: cfg.Dispatcher,
		maxBytes: cfg.MaxBytes,
		sem:      semaphore.NewWeighted(cfg.Workers),
		log:      cfg.Logger.WithPrefix("fetch"),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Fetch GETs rawURL and delivers the result to done through the dispatcher.
// Only http and https URLs are fetched; a non-2xx status is an error. After
// Close, Fetch does nothing.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, done func(Result)) CancelFunc {
	if f.ctx.Err() != nil {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	stopAfter := context.AfterFunc(f.ctx, cancel)
	var abandoned atomic.Bool
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer stopAfter()
		defer cancel()
		if err := f.sem.Acquire(ctx, 1); err != nil {
			return
		}
		res := f.get(ctx, rawURL)
		f.sem.Release(1)
		if ctx.Err() != nil {
			f.log.Debug("fetch abandoned", logging.FieldURL, rawURL)
			return
		}
		f.dispatch.Do(func() {
			if abandoned.Load() || f.ctx.Err() != nil {
				return
			}
			done(res)
		})
	}()
	return func() {
		abandoned.Store(true)
		cancel()
	}
}

func (f *Fetcher) get(ctx context.Context, rawURL string) Result {
	res := Result{URL: rawURL}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		res.Err = fmt.Errorf("fetch: build request: %w", err)
		return res
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		res.Err = fmt.Errorf("fetch: unsupported scheme %q", req.URL.Scheme)
		return res
	}
	resp, err := f.client.Do(req)
	if err != nil {
		res.Err = fmt.Errorf("fetch: request: %w", err)
		return res
	}
	defer resp.Body.Close()
	res.Status = resp.StatusCode
	res.ContentType = resp.Header.Get("Content-Type")
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		res.Err = fmt.Errorf("fetch: status %s", resp.Status)
		return res
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		res.Err = fmt.Errorf("fetch: read body: %w", err)
		return res
	}
	if int64(len(body)) > f.maxBytes {
		res.Err = fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes)
		return res
	}
	res.Body = body
	f.log.Debug("fetched", logging.FieldURL, rawURL, logging.FieldLength, len(body))
	return res
}

// Close cancels every in-flight fetch and waits for the workers to exit.
// Callbacks not yet run are suppressed.
func (f *Fetcher) Close() {
	f.cancel()
	f.wg.Wait()
}
