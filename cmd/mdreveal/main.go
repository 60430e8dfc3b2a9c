package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"pkt.systems/mdreveal/config"
	"pkt.systems/mdreveal/internal/logging"
	"pkt.systems/mdreveal/styler"
	"pkt.systems/version"
)

const defaultWidth = 80

func init() {
	version.SetDefaultModule("pkt.systems/mdreveal")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	configPath      string
	interval        time.Duration
	chunk           int
	fade            int
	endMessage      string
	theme           string
	listThemes      bool
	width           int
	osc8            string
	outPath         string
	tui             bool
	simulate        bool
	simChunk        int
	simDelay        time.Duration
	stopAfter       time.Duration
	stateDB         string
	key             string
	resume          bool
	fetchImages     bool
	keepFrontMatter bool
	logLevel        string
	showVersion     bool
}

func parseFlags(args []string, stderr io.Writer) (*options, *pflag.FlagSet, error) {
	defaults := config.Default()
	opts := &options{}
	flags := pflag.NewFlagSet("mdreveal", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVarP(&opts.configPath, "config", "c", "", "Config file (default: user config dir mdreveal/config.yaml)")
	flags.DurationVar(&opts.interval, "interval", defaults.Interval, "Delay between reveal steps")
	flags.IntVar(&opts.chunk, "chunk", defaults.ChunkSize, "Characters revealed per step")
	flags.IntVar(&opts.fade, "fade", defaults.FadeWidth, "Fade window width in characters (0 disables)")
	flags.StringVar(&opts.endMessage, "end-message", defaults.EndMessage, "Message shown after an early stop")
	flags.StringVarP(&opts.theme, "theme", "t", defaults.Theme, "Theme name")
	flags.BoolVar(&opts.listThemes, "list-themes", false, "List available themes")
	flags.IntVarP(&opts.width, "width", "w", 0, "Output width override (0 uses terminal width if available)")
	flags.StringVarP(&opts.osc8, "osc8", "8", defaults.OSC8, "OSC8 hyperlinks: auto|on|off")
	flags.StringVarP(&opts.outPath, "output", "o", "", "Write the final frame to a file instead of stdout")
	flags.BoolVar(&opts.tui, "tui", false, "Reveal full screen (space pauses, q stops)")
	flags.BoolVar(&opts.simulate, "simulate", false, "Stream simulator (use default delay and chunk size)")
	flags.IntVar(&opts.simChunk, "simulate-chunk", defaults.Simulate.ChunkSize, "Characters per simulated stream chunk")
	flags.DurationVar(&opts.simDelay, "simulate-delay", defaults.Simulate.Delay, "Delay per simulated stream chunk")
	flags.DurationVar(&opts.stopAfter, "stop-after", 0, "Stop the reveal after this long")
	flags.StringVar(&opts.stateDB, "state-db", "", "SQLite file for saving and resuming reveals")
	flags.StringVar(&opts.key, "key", "", "Snapshot key in the state database (default: derived from inputs)")
	flags.BoolVar(&opts.resume, "resume", false, "Continue the reveal saved under --key")
	flags.BoolVar(&opts.fetchImages, "fetch-images", false, "Fetch remote images as they are revealed")
	flags.BoolVar(&opts.keepFrontMatter, "keep-front-matter", false, "Do not strip a leading front matter block")
	flags.StringVar(&opts.logLevel, "log-level", defaults.LogLevel, "Log level: debug|info|warn|error")
	flags.BoolVarP(&opts.showVersion, "version", "v", false, "Print version and exit")

	flags.SetInterspersed(true)
	flags.Usage = func() {
		fmt.Fprintln(stderr, version.Module(), version.Current())
		fmt.Fprintf(stderr, "Usage: mdreveal [flags] [inputs...]\n")
		fmt.Fprintln(stderr, "\nInputs are files, file:// or http(s) URLs. Without inputs Markdown is read from stdin.")
		fmt.Fprintln(stderr, "\nFlags:")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return nil, nil, err
	}
	return opts, flags, nil
}

// resolveConfig loads the config file and applies the flags given on the
// command line over it.
func resolveConfig(opts *options, flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if flags.Changed("interval") {
		cfg.Interval = opts.interval
	}
	if flags.Changed("chunk") {
		cfg.ChunkSize = opts.chunk
	}
	if flags.Changed("fade") {
		cfg.FadeWidth = opts.fade
	}
	if flags.Changed("end-message") {
		cfg.EndMessage = opts.endMessage
	}
	if flags.Changed("theme") {
		cfg.Theme = opts.theme
	}
	if flags.Changed("width") {
		cfg.Width = opts.width
	}
	if flags.Changed("osc8") {
		mode, err := normalizeOSC8(opts.osc8)
		if err != nil {
			return nil, fmt.Errorf("invalid --osc8 %q: %w", opts.osc8, err)
		}
		cfg.OSC8 = mode
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("state-db") {
		cfg.StateDB = opts.stateDB
	}
	if flags.Changed("simulate-chunk") {
		cfg.Simulate.ChunkSize = opts.simChunk
	}
	if flags.Changed("simulate-delay") {
		cfg.Simulate.Delay = opts.simDelay
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, flags, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if opts.showVersion {
		fmt.Fprintln(stdout, version.Module(), version.Current())
		return 0
	}
	if opts.listThemes {
		printThemes(stdout)
		return 0
	}
	cfg, err := resolveConfig(opts, flags)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}
	if opts.resume && cfg.StateDB == "" {
		fmt.Fprintln(stderr, "--resume needs --state-db (or state_db in the config file)")
		return 2
	}
	logger := logging.NewWithWriter(stderr, cfg.LogLevel)
	logging.SetDefault(logger)

	sess, err := newSession(ctx, sessionConfig{
		cfg:    cfg,
		opts:   opts,
		args:   flags.Args(),
		stdin:  stdin,
		stdout: stdout,
		log:    logger,
	})
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	return sess.run(ctx)
}

func printThemes(w io.Writer) {
	for _, name := range styler.AvailableThemes() {
		fmt.Fprintln(w, name)
	}
}
