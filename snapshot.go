package mdreveal

import (
	"fmt"
	"time"
)

// Snapshot is the complete reveal state of a Controller. Snapshots are values;
// buffers inside are immutable and safe to share. Attributes holding pointers,
// such as a table row shared with a row cache, may refer to state that keeps
// changing; what the buffer was built with is carried by value.
type Snapshot struct {
	Source        string
	Full          FormatBuffer
	Visible       FormatBuffer
	Cursor        int
	ChunkSize     int
	Interval      time.Duration
	FadeWidth     int
	Phase         Phase
	Started       bool
	Printing      bool
	StoppedByUser bool
}

// PortableSnapshot is the serializable part of a Snapshot. Formatting is
// never stored; Rehydrate re-parses the source.
type PortableSnapshot struct {
	Source        string        `json:"source"`
	Cursor        int           `json:"cursor"`
	ChunkSize     int           `json:"chunk_size"`
	Interval      time.Duration `json:"interval"`
	FadeWidth     int           `json:"fade_width"`
	Phase         Phase         `json:"phase"`
	Started       bool          `json:"started"`
	Printing      bool          `json:"printing"`
	StoppedByUser bool          `json:"stopped_by_user"`
}

// Portable drops the buffers from s.
func (s Snapshot) Portable() PortableSnapshot {
	return PortableSnapshot{
		Source:        s.Source,
		Cursor:        s.Cursor,
		ChunkSize:     s.ChunkSize,
		Interval:      s.Interval,
		FadeWidth:     s.FadeWidth,
		Phase:         s.Phase,
		Started:       s.Started,
		Printing:      s.Printing,
		StoppedByUser: s.StoppedByUser,
	}
}

// Rehydrate rebuilds a Snapshot from p by parsing its source with parser
// (PlainParser when nil) and recomputing the visible prefix.
func Rehydrate(p PortableSnapshot, parser Parser) (Snapshot, error) {
	if parser == nil {
		parser = PlainParser
	}
	full, err := parser.Parse(p.Source)
	if err != nil {
		return Snapshot{}, fmt.Errorf("rehydrate: parse: %w", err)
	}
	cursor := clampInt(p.Cursor, 0, full.Len())
	var visible FormatBuffer
	switch {
	case cursor >= full.Len():
		visible = ClearFade(full)
	case p.Phase == PhaseStopped || p.StoppedByUser:
		visible = ClearFade(Truncate(full, cursor))
	default:
		visible = ApplyFade(Truncate(full, cursor), cursor, p.FadeWidth)
	}
	return Snapshot{
		Source:        p.Source,
		Full:          full,
		Visible:       visible,
		Cursor:        cursor,
		ChunkSize:     p.ChunkSize,
		Interval:      p.Interval,
		FadeWidth:     p.FadeWidth,
		Phase:         p.Phase,
		Started:       p.Started,
		Printing:      p.Printing,
		StoppedByUser: p.StoppedByUser,
	}, nil
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	if p > PhaseStopped {
		return nil, fmt.Errorf("phase: unknown value %d", uint8(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	v, err := ParsePhase(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParsePhase maps a phase name back to its value.
func ParsePhase(s string) (Phase, error) {
	switch s {
	case "idle", "":
		return PhaseIdle, nil
	case "printing":
		return PhasePrinting, nil
	case "paused":
		return PhasePaused, nil
	case "stopped":
		return PhaseStopped, nil
	default:
		return PhaseIdle, fmt.Errorf("phase: unknown name %q", s)
	}
}
