package chart

// Event is one entry of a Timeline. The concrete type is one of
// TempoChange, Note or Sample.
type Event interface {
	At() int
	priority() int
}

// NoteKind tells which part of a playable note an event is
type NoteKind int

const (
	Tap NoteKind = iota
	HoldStart
	HoldEnd
)

func (k NoteKind) String() string {
	switch k {
	case Tap:
		return "tap"
	case HoldStart:
		return "hold-start"
	case HoldEnd:
		return "hold-end"
	default:
		return "unknown"
	}
}

// TempoChange marks an anchor timing point on the timeline
type TempoChange struct {
	Point TimingPoint
}

func (e TempoChange) At() int       { return e.Point.Time }
func (e TempoChange) priority() int { return 0 }

// Note is a tap or one end of a hold on a lane
type Note struct {
	Kind   NoteKind
	Time   int
	Lane   int
	Sound  *SoundKey   // nil when the note plays no sound
	Timing TimingPoint // Point in effect when the note was read
}

func (e Note) At() int       { return e.Time }
func (e Note) priority() int { return 1 }

// Sample is a background sound not attached to a lane
type Sample struct {
	Time  int
	Sound SoundKey
}

func (e Sample) At() int       { return e.Time }
func (e Sample) priority() int { return 1 }
