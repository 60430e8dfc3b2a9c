package mdreveal

// DefaultFadeWidth is the number of trailing characters covered by the fade window.
const DefaultFadeWidth = 10

// FadePriority is the priority of fade overlays; they paint above everything else.
const FadePriority = 1 << 30

// ApplyFade returns buf with a rolling opacity gradient over the k characters
// before cursor. The character at cursor-1 is fully transparent and opacity
// rises by 255/k per character moving backwards, so the character at
// cursor-k gets 255*(k-1)/k. Overlays are appended after every existing range.
func ApplyFade(buf FormatBuffer, cursor int, k int) FormatBuffer {
	if k <= 0 {
		return buf
	}
	cursor = clampInt(cursor, 0, len(buf.text))
	n := k
	if cursor < n {
		n = cursor
	}
	if n == 0 {
		return buf
	}
	ranges := make([]Range, len(buf.ranges), len(buf.ranges)+n)
	copy(ranges, buf.ranges)
	for i := 0; i < k; i++ {
		idx := cursor - i - 1
		if idx < 0 {
			break
		}
		ranges = append(ranges, Range{
			Start:    idx,
			End:      idx + 1,
			Attr:     Fade{Alpha: fadeAlpha(i, k)},
			Priority: FadePriority,
		})
	}
	return FormatBuffer{text: buf.text, ranges: ranges, clamped: buf.clamped}
}

func fadeAlpha(i, k int) uint8 {
	return uint8(255 * i / k)
}

// ClearFade returns buf without any Fade overlays.
func ClearFade(buf FormatBuffer) FormatBuffer {
	keep := -1
	for i, r := range buf.ranges {
		if _, ok := r.Attr.(Fade); ok {
			keep = i
			break
		}
	}
	if keep < 0 {
		return buf
	}
	ranges := make([]Range, 0, len(buf.ranges))
	ranges = append(ranges, buf.ranges[:keep]...)
	for _, r := range buf.ranges[keep:] {
		if _, ok := r.Attr.(Fade); ok {
			continue
		}
		ranges = append(ranges, r)
	}
	return FormatBuffer{text: buf.text, ranges: ranges, clamped: buf.clamped}
}
