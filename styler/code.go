package styler

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/go-enry/go-enry/v2"
	"github.com/yuin/goldmark/text"

	"pkt.systems/mdreveal"
	"pkt.systems/mdreveal/internal/logging"
)

// code writes a code block, colouring tokens with the theme's chroma style.
func (r *renderer) code(lang string, lines *text.Segments) {
	var sb strings.Builder
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(r.src))
	}
	code := strings.TrimRight(sb.String(), "\n")
	lang = strings.TrimSpace(lang)
	if lang == "" && r.s.detect && code != "" {
		lang = detectLanguage(code)
	}
	start := r.mark()
	if !r.highlight(lang, code) {
		r.write(code, priorityBlock, mdreveal.Foreground{Color: r.styles.Text})
	}
	r.style(start, r.bd.Len(), priorityBlock, mdreveal.CodeBlock{Lang: lang})
}

func (r *renderer) highlight(lang, code string) bool {
	if code == "" {
		return true
	}
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		return false
	}
	lexer = chroma.Coalesce(lexer)
	it, err := lexer.Tokenise(nil, code)
	if err != nil {
		r.s.log.Debug("tokenise failed", logging.FieldLang, lang, logging.FieldError, err)
		return false
	}
	tokens := it.Tokens()
	for len(tokens) > 0 {
		last := &tokens[len(tokens)-1]
		last.Value = strings.TrimRight(last.Value, "\n")
		if last.Value != "" {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}
	style := styles.Get(r.styles.Chroma)
	for _, tok := range tokens {
		entry := style.Get(tok.Type)
		attrs := make([]mdreveal.Attribute, 0, 3)
		if entry.Colour.IsSet() {
			attrs = append(attrs, mdreveal.Foreground{Color: mdreveal.Color{
				R: entry.Colour.Red(),
				G: entry.Colour.Green(),
				B: entry.Colour.Blue(),
			}})
		}
		if entry.Bold == chroma.Yes {
			attrs = append(attrs, mdreveal.Bold{})
		}
		if entry.Italic == chroma.Yes {
			attrs = append(attrs, mdreveal.Italic{})
		}
		r.write(tok.Value, priorityInline, attrs...)
	}
	return true
}

// detectLanguage guesses the language of an unlabelled code block.
func detectLanguage(code string) string {
	lang := enry.GetLanguage("", []byte(code))
	return strings.ToLower(lang)
}
