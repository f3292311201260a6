// Package export renders melodies as Standard MIDI Files and text.
package export

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"melodyevo/internal/model"
)

// MIDIOptions controls rendering. Zero values select the defaults.
type MIDIOptions struct {
	TicksPerQuarter uint16
	TempoBPM        float64
	Velocity        uint8
	Channel         uint8
	Program         uint8
	TrackName       string
}

func DefaultMIDIOptions() MIDIOptions {
	return MIDIOptions{
		TicksPerQuarter: 480,
		TempoBPM:        model.TempoBPM,
		Velocity:        100,
	}
}

func (o MIDIOptions) withDefaults() MIDIOptions {
	def := DefaultMIDIOptions()
	if o.TicksPerQuarter == 0 {
		o.TicksPerQuarter = def.TicksPerQuarter
	}
	if o.TempoBPM <= 0 {
		o.TempoBPM = def.TempoBPM
	}
	if o.Velocity == 0 {
		o.Velocity = def.Velocity
	}
	return o
}

// Encode builds a single-track format 0 file in 4/4. Rests advance time
// without emitting events; a trailing rest extends the end of track.
func Encode(m model.Melody, opts MIDIOptions) (*smf.SMF, error) {
	opts = opts.withDefaults()
	if opts.Channel > 15 {
		return nil, fmt.Errorf("midi channel %d out of range", opts.Channel)
	}
	ticks := smf.MetricTicks(opts.TicksPerQuarter)

	var tr smf.Track
	if opts.TrackName != "" {
		tr.Add(0, smf.MetaTrackSequenceName(opts.TrackName))
	}
	tr.Add(0, smf.MetaMeter(model.BeatsPerBar, 4))
	tr.Add(0, smf.MetaTempo(opts.TempoBPM))
	tr.Add(0, midi.ProgramChange(opts.Channel, opts.Program))

	var pending uint32
	for i, n := range m.Notes {
		if n.Duration <= 0 {
			return nil, fmt.Errorf("note %d: non-positive duration %g", i, n.Duration)
		}
		length := uint32(math.Round(n.Duration * float64(ticks.Ticks4th())))
		if n.IsRest() {
			pending += length
			continue
		}
		key := n.MIDIKey()
		if key < 0 || key > 127 {
			return nil, fmt.Errorf("note %d: %s is outside the MIDI key range", i, n)
		}
		tr.Add(pending, midi.NoteOn(opts.Channel, uint8(key), opts.Velocity))
		tr.Add(length, midi.NoteOff(opts.Channel, uint8(key)))
		pending = 0
	}
	tr.Close(pending)

	s := smf.New()
	s.TimeFormat = ticks
	if err := s.Add(tr); err != nil {
		return nil, fmt.Errorf("add track: %w", err)
	}
	return s, nil
}

func WriteMIDI(w io.Writer, m model.Melody, opts MIDIOptions) error {
	s, err := Encode(m, opts)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	if _, err := s.WriteTo(bw); err != nil {
		return fmt.Errorf("write midi: %w", err)
	}
	return bw.Flush()
}

// WriteMIDIFile writes path, creating parent directories as needed.
func WriteMIDIFile(path string, m model.Melody, opts MIDIOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteMIDI(f, m, opts); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

// ReadMIDI decodes the first note-bearing track back into a melody. Gaps
// between notes become rests and overlapping notes are rejected. Durations
// are not quantized.
func ReadMIDI(r io.Reader) (model.Melody, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return model.Melody{}, fmt.Errorf("read midi: %w", err)
	}
	metric, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return model.Melody{}, fmt.Errorf("unsupported time format %v", s.TimeFormat)
	}
	quarter := float64(metric.Ticks4th())

	for _, tr := range s.Tracks {
		var (
			out      model.Melody
			now      uint32
			cursor   uint32
			sounding = -1
			start    uint32
		)
		for _, ev := range tr {
			now += ev.Delta
			var ch, key, vel uint8
			msg := midi.Message(ev.Message)
			switch {
			case msg.GetNoteStart(&ch, &key, &vel):
				if sounding >= 0 {
					return model.Melody{}, fmt.Errorf("overlapping notes at tick %d", now)
				}
				if now > cursor {
					out.Notes = append(out.Notes, restNote(float64(now-cursor)/quarter))
				}
				sounding, start = int(key), now
			case msg.GetNoteEnd(&ch, &key):
				if int(key) != sounding {
					continue
				}
				n := model.FromAbsolute(sounding-12, float64(now-start)/quarter)
				out.Notes = append(out.Notes, n)
				sounding, cursor = -1, now
			case ev.Message.Is(smf.MetaEndOfTrackMsg):
				if now > cursor && len(out.Notes) > 0 {
					out.Notes = append(out.Notes, restNote(float64(now-cursor)/quarter))
				}
			}
		}
		if len(out.Notes) > 0 {
			return out, nil
		}
	}
	return model.Melody{}, fmt.Errorf("midi file has no notes")
}

func restNote(duration float64) model.Note {
	return model.Note{Octave: 4, PitchClass: model.Rest, Duration: duration}
}
