package mdreveal

import "strings"

const maxFrontMatterProbe = 64 * 1024

// frontMatter withholds text at the very start of a stream until it can tell
// whether it opens a YAML (---), TOML (+++) or JSON (;;;) front matter block,
// then drops the block. Only the start of a stream is ever checked.
type frontMatter struct {
	decided bool
	probe   strings.Builder
}

// push feeds s and returns whatever may be shown now.
func (f *frontMatter) push(s string) string {
	if f.decided || s == "" {
		return s
	}
	f.probe.WriteString(s)
	out, ok := f.decide(false)
	if !ok && f.probe.Len() > maxFrontMatterProbe {
		out, ok = f.release(0), true
	}
	if ok {
		return out
	}
	return ""
}

// flush releases anything still withheld at end of input.
func (f *frontMatter) flush() string {
	if f.decided {
		return ""
	}
	out, _ := f.decide(true)
	return out
}

func (f *frontMatter) release(from int) string {
	out := f.probe.String()[from:]
	f.decided = true
	f.probe.Reset()
	return out
}

func (f *frontMatter) decide(eof bool) (string, bool) {
	src := f.probe.String()
	open, next, ok := frontMatterLine(src, 0, eof)
	if !ok {
		return "", false
	}
	delim := frontMatterDelimiter(open)
	if delim == "" {
		return f.release(0), true
	}
	first, next, ok := frontMatterLine(src, next, eof)
	if !ok {
		return "", false
	}
	if !looksLikeMetadata(first) {
		return f.release(0), true
	}
	for {
		line, after, ok := frontMatterLine(src, next, eof)
		if !ok || after == next {
			if eof {
				return f.release(0), true
			}
			return "", false
		}
		if strings.TrimSpace(line) == delim {
			return f.release(after), true
		}
		next = after
	}
}

// frontMatterLine returns the line starting at start and the offset after its
// newline. Without eof an unterminated line is not yet available.
func frontMatterLine(src string, start int, eof bool) (string, int, bool) {
	if start >= len(src) {
		return "", start, eof
	}
	i := strings.IndexByte(src[start:], '\n')
	if i < 0 {
		if !eof {
			return "", 0, false
		}
		return strings.TrimSuffix(src[start:], "\r"), len(src), true
	}
	return strings.TrimSuffix(src[start:start+i], "\r"), start + i + 1, true
}

func frontMatterDelimiter(line string) string {
	switch d := strings.TrimSpace(strings.TrimPrefix(line, "\ufeff")); d {
	case "---", "+++", ";;;":
		return d
	default:
		return ""
	}
}

func looksLikeMetadata(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if strings.HasPrefix(line, "{") || strings.HasPrefix(line, "[") {
		return true
	}
	return strings.ContainsAny(line, ":=")
}

// StripFrontMatter removes a leading front matter block from src. Unclosed
// blocks, and blocks whose first line does not look like metadata, are kept.
func StripFrontMatter(src string) string {
	var f frontMatter
	return f.push(src) + f.flush()
}
