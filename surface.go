package mdreveal

// Surface displays formatted text. The controller calls Show from the
// scheduler's thread with the complete buffer to display; a surface never
// receives partial updates.
type Surface interface {
	Show(FormatBuffer)
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(FormatBuffer)

// Show calls f(buf).
func (f SurfaceFunc) Show(buf FormatBuffer) { f(buf) }

// Parser turns source text into a FormatBuffer. It is called on every Start
// and Append with the whole accumulated source.
type Parser interface {
	Parse(source string) (FormatBuffer, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(source string) (FormatBuffer, error)

// Parse calls f(source).
func (f ParserFunc) Parse(source string) (FormatBuffer, error) { return f(source) }

// PlainParser shows the source verbatim without formatting.
var PlainParser Parser = ParserFunc(func(source string) (FormatBuffer, error) {
	return PlainText(source), nil
})

// Listener receives reveal lifecycle events.
type Listener interface {
	OnPrintStart()
	OnPrintPaused(cursor int)
	OnPrintResumed()
	OnPrintStop(printAll bool)
}

// ListenerFuncs implements Listener with optional callbacks.
type ListenerFuncs struct {
	Start   func()
	Paused  func(cursor int)
	Resumed func()
	Stop    func(printAll bool)
}

func (l ListenerFuncs) OnPrintStart() {
	if l.Start != nil {
		l.Start()
	}
}

func (l ListenerFuncs) OnPrintPaused(cursor int) {
	if l.Paused != nil {
		l.Paused(cursor)
	}
}

func (l ListenerFuncs) OnPrintResumed() {
	if l.Resumed != nil {
		l.Resumed()
	}
}

func (l ListenerFuncs) OnPrintStop(printAll bool) {
	if l.Stop != nil {
		l.Stop(printAll)
	}
}

// StreamStateObserver is told when the document stream opens or closes.
// Parsers that keep per-stream caches implement it.
type StreamStateObserver interface {
	OnStreamStateChanged(streaming bool)
}

// ExposureListener is told which clickable elements are on display whenever
// that set changes.
type ExposureListener interface {
	OnExposure([]Element)
}
