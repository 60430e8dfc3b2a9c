// Package mdreveal reveals formatted text a few characters at a time, the
// way chat clients print a model's answer as it streams in.
//
// The unit of display is a FormatBuffer: immutable text plus ordered
// formatting ranges. A Controller holds the parsed buffer of everything
// received so far and, on every tick of its Scheduler, shows a longer prefix
// of it on a Surface. Ranges are cut at the cursor by Truncate and the
// characters just revealed are softened by ApplyFade.
//
// Core properties:
//   - All controller state lives on one goroutine (see Loop)
//   - Text may keep arriving while the reveal runs (Append)
//   - Pause, resume, stop and snapshot/restore never corrupt displayed ranges
//   - Formatting is parsed by a pluggable Parser (see package styler)
//
// Example:
//
//	loop := mdreveal.NewLoop()
//	ctrl, err := mdreveal.NewController(view,
//		mdreveal.WithScheduler(loop),
//		mdreveal.WithParser(styler.New()),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	loop.Do(func() { _ = ctrl.Start("# Hello\n\nStreaming markdown.", 0) })
//	_ = loop.Run(ctx)
//
// Streaming tables are laid out through package rowcache so rows that are
// already complete are not rebuilt on every update.
package mdreveal
