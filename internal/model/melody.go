package model

import "fmt"

const (
	MinOctave = 3
	MaxOctave = 5

	Rest           = 0
	PitchClasses   = 12
	TargetDuration = 16.0
	BeatsPerBar    = 4
	TempoBPM       = 120

	// DurationEpsilon absorbs float drift when comparing duration sums.
	DurationEpsilon = 1e-9
)

// Durations is the quantized duration set in quarter-note units.
var Durations = []float64{0.5, 1, 2, 4}

var pitchNames = [PitchClasses]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

func (n Note) IsRest() bool {
	return n.PitchClass == Rest
}

// Absolute returns octave*12 + chroma. It is only meaningful for pitched notes.
func (n Note) Absolute() int {
	return n.Octave*PitchClasses + n.PitchClass - 1
}

// Chroma returns the zero-based pitch class (C=0).
func (n Note) Chroma() int {
	return n.PitchClass - 1
}

// MIDIKey maps the note onto the MIDI key space where C4 is 60.
func (n Note) MIDIKey() int {
	return (n.Octave+1)*PitchClasses + n.PitchClass - 1
}

func (n Note) String() string {
	if n.IsRest() {
		return fmt.Sprintf("R(%g)", n.Duration)
	}
	idx := min(max(n.PitchClass, 1), PitchClasses) - 1
	return fmt.Sprintf("%s%d(%g)", pitchNames[idx], n.Octave, n.Duration)
}

// FromAbsolute converts an absolute pitch back to a note, clamping the
// octave into range without re-wrapping the pitch class.
func FromAbsolute(abs int, duration float64) Note {
	octave := floorDiv(abs, PitchClasses)
	chroma := abs - octave*PitchClasses
	return Note{
		Octave:     ClampOctave(octave),
		PitchClass: chroma + 1,
		Duration:   duration,
	}
}

func ClampOctave(octave int) int {
	return min(max(octave, MinOctave), MaxOctave)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func (m Melody) Len() int {
	return len(m.Notes)
}

func (m Melody) TotalDuration() float64 {
	total := 0.0
	for _, n := range m.Notes {
		total += n.Duration
	}
	return total
}

// Clone returns a deep copy with the cached fitness reset.
func (m Melody) Clone() Melody {
	return Melody{Notes: append([]Note(nil), m.Notes...)}
}

// CloneScored returns a deep copy that keeps the cached fitness.
func (m Melody) CloneScored() Melody {
	out := m.Clone()
	out.Fitness = m.Fitness
	return out
}

// Pitched returns the non-rest notes in order.
func (m Melody) Pitched() []Note {
	out := make([]Note, 0, len(m.Notes))
	for _, n := range m.Notes {
		if !n.IsRest() {
			out = append(out, n)
		}
	}
	return out
}

func (m Melody) String() string {
	s := ""
	for i, n := range m.Notes {
		if i > 0 {
			s += " "
		}
		s += n.String()
	}
	return s
}

// ChromaName returns the sharp spelling of a zero-based chroma.
func ChromaName(chroma int) string {
	return pitchNames[((chroma%PitchClasses)+PitchClasses)%PitchClasses]
}
