package mdreveal

// ElementKind identifies a clickable element.
type ElementKind uint8

const (
	ElementLink ElementKind = iota + 1
	ElementImage
)

func (k ElementKind) String() string {
	switch k {
	case ElementLink:
		return "link"
	case ElementImage:
		return "image"
	default:
		return "unknown"
	}
}

// Element is a clickable element visible on a surface.
type Element struct {
	Kind  ElementKind
	URL   string
	Text  string
	Start int
	End   int
}

func (e Element) sameTarget(o Element) bool {
	return e.Kind == o.Kind && e.URL == o.URL
}

// Elements lists the links and images in buf in paint order. Empty ranges
// are skipped, so a link only counts once at least one of its characters is
// in the buffer.
func Elements(buf FormatBuffer) []Element {
	var out []Element
	for _, r := range buf.ranges {
		if r.Start >= r.End {
			continue
		}
		switch a := r.Attr.(type) {
		case Link:
			out = append(out, Element{Kind: ElementLink, URL: a.URL, Text: buf.Slice(r.Start, r.End), Start: r.Start, End: r.End})
		case Image:
			out = append(out, Element{Kind: ElementImage, URL: a.Src, Text: a.Alt, Start: r.Start, End: r.End})
		}
	}
	return out
}
