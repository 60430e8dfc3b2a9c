package styler

import (
	"strconv"
	"strings"

	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"pkt.systems/mdreveal"
)

const (
	bulletMarker     = "• "
	taskOpenMarker   = "☐ "
	taskDoneMarker   = "☑ "
	quoteMarker      = "│ "
	imagePlaceholder = "\ufffc"
)

// Inline ranges that must stay visible inside coloured containers paint one
// level higher.
const (
	priorityBlock  = 0
	priorityInline = 1
)

var headingScale = [6]float64{1.5, 1.35, 1.2, 1.1, 1.0, 0.9}

type linePrefix struct {
	text  string
	attrs []mdreveal.Attribute
}

type renderer struct {
	s      *Styler
	src    []byte
	styles Styles
	bd     mdreveal.Builder

	prefixes    []linePrefix
	atLineStart bool
	newlines    int
	skipSep     bool
	quoteDepth  int
	tables      int
}

func newRenderer(s *Styler, src []byte) *renderer {
	return &renderer{
		s:           s,
		src:         src,
		styles:      s.theme.Styles(),
		atLineStart: true,
	}
}

// write appends s line by line, emitting line prefixes before the first text
// of every line, and applies attrs over the written span.
func (r *renderer) write(s string, prio int, attrs ...mdreveal.Attribute) (start, end int) {
	start = -1
	for len(s) > 0 {
		i := strings.IndexByte(s, '\n')
		seg := s
		if i >= 0 {
			seg = s[:i]
		}
		if seg != "" {
			r.linePrefix()
			if start < 0 {
				start = r.bd.Len()
			}
			r.bd.WriteString(seg)
			r.newlines = 0
		}
		if i < 0 {
			break
		}
		if start < 0 {
			start = r.bd.Len()
		}
		r.bd.WriteRune('\n')
		r.newlines++
		r.atLineStart = true
		s = s[i+1:]
	}
	if start < 0 {
		start = r.bd.Len()
	}
	end = r.bd.Len()
	r.style(start, end, prio, attrs...)
	return start, end
}

func (r *renderer) style(start, end, prio int, attrs ...mdreveal.Attribute) {
	if end <= start {
		return
	}
	for _, a := range attrs {
		r.bd.Add(start, end, a, prio)
	}
}

// mark returns the offset where the next text will start.
func (r *renderer) mark() int {
	r.linePrefix()
	return r.bd.Len()
}

func (r *renderer) linePrefix() {
	if !r.atLineStart {
		return
	}
	r.atLineStart = false
	for _, p := range r.prefixes {
		start, end := r.bd.WriteString(p.text)
		r.style(start, end, priorityBlock, p.attrs...)
	}
	if len(r.prefixes) > 0 {
		r.newlines = 0
	}
}

func (r *renderer) pushPrefix(text string, attrs ...mdreveal.Attribute) {
	r.prefixes = append(r.prefixes, linePrefix{text: text, attrs: attrs})
}

func (r *renderer) popPrefix() {
	r.prefixes = r.prefixes[:len(r.prefixes)-1]
}

func (r *renderer) ensureNewline() {
	if r.bd.Len() > 0 && !r.atLineStart {
		r.bd.WriteRune('\n')
		r.newlines++
		r.atLineStart = true
	}
}

// separate puts a line break, or a blank line for loose content, between
// sibling blocks.
func (r *renderer) separate(tight bool) {
	if r.skipSep {
		r.skipSep = false
		return
	}
	if r.bd.Len() == 0 {
		return
	}
	r.ensureNewline()
	if !tight && r.newlines < 2 {
		r.bd.WriteRune('\n')
		r.newlines++
	}
}

func (r *renderer) blocks(parent ast.Node, tight bool) {
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		r.separate(tight)
		r.block(c, tight)
	}
}

func (r *renderer) block(n ast.Node, tight bool) {
	switch n := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		r.inlines(n)
	case *ast.Heading:
		r.heading(n)
	case *ast.ThematicBreak:
		r.write(strings.Repeat("─", r.s.ruleWidth), priorityBlock, mdreveal.Foreground{Color: r.styles.ThematicBreak})
	case *ast.FencedCodeBlock:
		r.code(string(n.Language(r.src)), n.Lines())
	case *ast.CodeBlock:
		r.code("", n.Lines())
	case *ast.Blockquote:
		r.quote(n)
	case *ast.List:
		r.list(n)
	case *ast.HTMLBlock:
		r.rawLines(n.Lines())
	case *east.Table:
		r.table(n)
	default:
		if n.HasChildren() {
			r.blocks(n, tight)
		}
	}
}

func (r *renderer) heading(n *ast.Heading) {
	level := min(max(n.Level, 1), 6)
	start := r.mark()
	r.inlines(n)
	r.style(start, r.bd.Len(), priorityBlock,
		mdreveal.Heading{Level: level},
		mdreveal.Bold{},
		mdreveal.FontScale{Scale: headingScale[level-1]},
		mdreveal.Foreground{Color: r.styles.Heading[level-1]},
	)
}

func (r *renderer) quote(n *ast.Blockquote) {
	r.quoteDepth++
	r.pushPrefix(quoteMarker, mdreveal.Foreground{Color: r.styles.Quote})
	start := r.bd.Len()
	r.skipSep = true
	r.blocks(n, false)
	r.skipSep = false
	r.style(start, r.bd.Len(), priorityBlock, mdreveal.Quote{Depth: r.quoteDepth})
	r.popPrefix()
	r.quoteDepth--
}

func (r *renderer) list(n *ast.List) {
	number := n.Start
	first := true
	for item := n.FirstChild(); item != nil; item = item.NextSibling() {
		if !first {
			r.separate(n.IsTight)
		}
		first = false
		marker := bulletMarker
		if n.IsOrdered() {
			marker = strconv.Itoa(number) + ". "
			number++
		}
		if checked, ok := taskState(item); ok {
			marker = taskOpenMarker
			if checked {
				marker = taskDoneMarker
			}
		}
		r.write(marker, priorityBlock, mdreveal.Foreground{Color: r.styles.ListMarker})
		r.pushPrefix(strings.Repeat(" ", len([]rune(marker))))
		r.skipSep = true
		r.blocks(item, n.IsTight)
		r.skipSep = false
		r.popPrefix()
	}
}

func taskState(item ast.Node) (checked, ok bool) {
	first := item.FirstChild()
	if first == nil {
		return false, false
	}
	cb, ok := first.FirstChild().(*east.TaskCheckBox)
	if !ok {
		return false, false
	}
	return cb.IsChecked, true
}

func (r *renderer) rawLines(lines *text.Segments) {
	var sb strings.Builder
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(r.src))
	}
	r.write(strings.TrimRight(sb.String(), "\n"), priorityBlock)
}

func (r *renderer) inlines(n ast.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		r.inline(c)
	}
}

func (r *renderer) inline(n ast.Node) {
	switch n := n.(type) {
	case *ast.Text:
		value := string(n.Segment.Value(r.src))
		if _, ok := n.PreviousSibling().(*east.TaskCheckBox); ok {
			value = strings.TrimLeft(value, " \t")
		}
		r.write(value, priorityBlock)
		switch {
		case n.HardLineBreak():
			r.write("\n", priorityBlock)
		case n.SoftLineBreak():
			r.write(" ", priorityBlock)
		}
	case *ast.String:
		r.write(string(n.Value), priorityBlock)
	case *ast.CodeSpan:
		start := r.mark()
		r.write(plainText(n, r.src), priorityInline)
		r.style(start, r.bd.Len(), priorityInline, mdreveal.Code{}, mdreveal.Foreground{Color: r.styles.CodeInline})
	case *ast.Emphasis:
		start := r.mark()
		r.inlines(n)
		if n.Level >= 2 {
			r.style(start, r.bd.Len(), priorityBlock, mdreveal.Bold{}, mdreveal.Foreground{Color: r.styles.Strong})
		} else {
			r.style(start, r.bd.Len(), priorityBlock, mdreveal.Italic{}, mdreveal.Foreground{Color: r.styles.Emphasis})
		}
	case *east.Strikethrough:
		start := r.mark()
		r.inlines(n)
		r.style(start, r.bd.Len(), priorityBlock, mdreveal.Strikethrough{})
	case *ast.Link:
		start := r.mark()
		r.inlines(n)
		r.style(start, r.bd.Len(), priorityInline,
			mdreveal.Link{URL: string(n.Destination), Title: string(n.Title)},
			mdreveal.Underline{},
			mdreveal.Foreground{Color: r.styles.Link},
		)
	case *ast.AutoLink:
		url := string(n.URL(r.src))
		if n.AutoLinkType == ast.AutoLinkEmail && !strings.HasPrefix(url, "mailto:") {
			url = "mailto:" + url
		}
		r.write(string(n.Label(r.src)), priorityInline,
			mdreveal.Link{URL: url},
			mdreveal.Underline{},
			mdreveal.Foreground{Color: r.styles.Link},
		)
	case *ast.Image:
		r.write(imagePlaceholder, priorityInline, mdreveal.Image{
			Src: string(n.Destination),
			Alt: plainText(n, r.src),
		})
	case *east.TaskCheckBox, *ast.RawHTML:
	default:
		r.inlines(n)
	}
}

// plainText returns the text content of n without formatting.
func plainText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		case *ast.AutoLink:
			sb.Write(t.Label(src))
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}
