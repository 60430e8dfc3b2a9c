package mdreveal

import (
	"time"

	"github.com/charmbracelet/log"
)

// Default reveal parameters.
const (
	DefaultInterval   = 25 * time.Millisecond
	DefaultChunkSize  = 1
	DefaultEndMessage = "(stopped)"
)

// Option configures a Controller.
type Option func(*controllerConfig)

type controllerConfig struct {
	parser     Parser
	scheduler  Scheduler
	listener   Listener
	logger     *log.Logger
	interval   time.Duration
	chunkSize  int
	fadeWidth  int
	endMessage string
	endStyle   []Attribute
	observers  []StreamStateObserver
	exposure   ExposureListener
}

func defaultControllerConfig() controllerConfig {
	return controllerConfig{
		parser:     PlainParser,
		listener:   ListenerFuncs{},
		interval:   DefaultInterval,
		chunkSize:  DefaultChunkSize,
		fadeWidth:  DefaultFadeWidth,
		endMessage: DefaultEndMessage,
		endStyle:   DefaultEndMessageStyle(),
	}
}

// DefaultEndMessageStyle is the small grey style of the stop message.
func DefaultEndMessageStyle() []Attribute {
	return []Attribute{Foreground{Color: MustHex("#999999")}, FontScale{Scale: 0.8}}
}

// WithParser sets the parser used on Start and Append.
func WithParser(p Parser) Option {
	return func(cfg *controllerConfig) {
		if p != nil {
			cfg.parser = p
		}
	}
}

// WithScheduler sets the scheduler ticks run on. Required.
func WithScheduler(s Scheduler) Option {
	return func(cfg *controllerConfig) {
		cfg.scheduler = s
	}
}

// WithListener sets the lifecycle listener.
func WithListener(l Listener) Option {
	return func(cfg *controllerConfig) {
		if l != nil {
			cfg.listener = l
		}
	}
}

// WithLogger sets the logger. The default is the package default logger.
func WithLogger(logger *log.Logger) Option {
	return func(cfg *controllerConfig) {
		cfg.logger = logger
	}
}

// WithInterval sets the delay between ticks. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(cfg *controllerConfig) {
		if d > 0 {
			cfg.interval = d
		}
	}
}

// WithChunkSize sets how many characters each tick reveals. Non-positive
// values are ignored.
func WithChunkSize(n int) Option {
	return func(cfg *controllerConfig) {
		if n > 0 {
			cfg.chunkSize = n
		}
	}
}

// WithFadeWidth sets the fade window size. Zero disables the fade; negative
// values are ignored.
func WithFadeWidth(k int) Option {
	return func(cfg *controllerConfig) {
		if k >= 0 {
			cfg.fadeWidth = k
		}
	}
}

// WithEndMessage sets the message appended when a reveal is stopped early.
func WithEndMessage(msg string) Option {
	return func(cfg *controllerConfig) {
		cfg.endMessage = msg
	}
}

// WithEndMessageStyle sets the attributes applied to the end message.
func WithEndMessageStyle(attrs ...Attribute) Option {
	return func(cfg *controllerConfig) {
		cfg.endStyle = append([]Attribute(nil), attrs...)
	}
}

// WithStreamObserver registers an observer of the stream open/closed signal.
func WithStreamObserver(o StreamStateObserver) Option {
	return func(cfg *controllerConfig) {
		if o != nil {
			cfg.observers = append(cfg.observers, o)
		}
	}
}

// WithExposureListener registers a listener for clickable element exposure.
func WithExposureListener(l ExposureListener) Option {
	return func(cfg *controllerConfig) {
		cfg.exposure = l
	}
}
