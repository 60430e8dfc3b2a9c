package mdreveal

// Truncate returns the prefix of buf that ends at cursor. Ranges ending at or
// before the cursor are kept as they are, ranges starting at or after it are
// dropped, and ranges straddling it are clipped to end at the cursor. The
// relative order of the surviving ranges is unchanged. The cursor is clamped
// to [0, buf.Len()].
func Truncate(buf FormatBuffer, cursor int) FormatBuffer {
	cursor = clampInt(cursor, 0, len(buf.text))
	out := FormatBuffer{text: buf.text[:cursor:cursor]}
	if len(buf.ranges) == 0 {
		return out
	}
	ranges := make([]Range, 0, len(buf.ranges))
	for _, r := range buf.ranges {
		switch {
		case r.End <= cursor:
			ranges = append(ranges, r)
		case r.Start >= cursor:
		default:
			r.End = cursor
			ranges = append(ranges, r)
		}
	}
	out.ranges = ranges
	return out
}
