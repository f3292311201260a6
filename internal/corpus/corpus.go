// Package corpus holds named seed phrases for the seed initializer.
package corpus

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"melodyevo/internal/model"
)

//go:embed builtin.yaml
var builtinYAML []byte

var ErrNoPhrases = errors.New("corpus has no phrases")

// Phrase is a named melody fragment.
type Phrase struct {
	Name  string
	Notes []model.Note
}

func (p Phrase) Melody() model.Melody {
	return model.Melody{Notes: append([]model.Note(nil), p.Notes...)}
}

type document struct {
	Phrases []phraseDocument `yaml:"phrases"`
}

// phraseDocument accepts either a compact "C4:1 R:0.5" string or a list of
// {octave, pitch_class, duration} mappings.
type phraseDocument struct {
	Name  string    `yaml:"name"`
	Notes yaml.Node `yaml:"notes"`
}

// Decode parses a YAML corpus document.
func Decode(data []byte) ([]Phrase, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}
	if len(doc.Phrases) == 0 {
		return nil, ErrNoPhrases
	}
	out := make([]Phrase, 0, len(doc.Phrases))
	for i, pd := range doc.Phrases {
		name := pd.Name
		if name == "" {
			name = fmt.Sprintf("phrase-%d", i+1)
		}
		notes, err := decodeNotes(&pd.Notes)
		if err != nil {
			return nil, fmt.Errorf("phrase %s: %w", name, err)
		}
		if len(notes) == 0 {
			return nil, fmt.Errorf("phrase %s: no notes", name)
		}
		out = append(out, Phrase{Name: name, Notes: notes})
	}
	return out, nil
}

func decodeNotes(node *yaml.Node) ([]model.Note, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		return ParseNotes(node.Value)
	case yaml.SequenceNode:
		var notes []model.Note
		if err := node.Decode(&notes); err != nil {
			return nil, err
		}
		for i, n := range notes {
			if err := validateNote(n); err != nil {
				return nil, fmt.Errorf("note %d: %w", i+1, err)
			}
		}
		return notes, nil
	default:
		return nil, fmt.Errorf("notes must be a string or a list, line %d", node.Line)
	}
}

// LoadFile reads a corpus from a YAML file.
func LoadFile(path string) ([]Phrase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	phrases, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return phrases, nil
}

// Builtin returns the embedded default corpus.
func Builtin() []Phrase {
	phrases, err := Decode(builtinYAML)
	if err != nil {
		panic(fmt.Sprintf("builtin corpus: %v", err))
	}
	return phrases
}

// Encode renders phrases in the compact string form accepted by Decode.
func Encode(phrases []Phrase) ([]byte, error) {
	doc := struct {
		Phrases []struct {
			Name  string `yaml:"name"`
			Notes string `yaml:"notes"`
		} `yaml:"phrases"`
	}{}
	for _, p := range phrases {
		doc.Phrases = append(doc.Phrases, struct {
			Name  string `yaml:"name"`
			Notes string `yaml:"notes"`
		}{Name: p.Name, Notes: FormatNotes(p.Notes)})
	}
	return yaml.Marshal(doc)
}

func ToMelodies(phrases []Phrase) []model.Melody {
	out := make([]model.Melody, 0, len(phrases))
	for _, p := range phrases {
		out = append(out, p.Melody())
	}
	return out
}

// FromMelodies names melodies by position, e.g. when a stored population
// seeds a new run.
func FromMelodies(prefix string, melodies []model.Melody) []Phrase {
	out := make([]Phrase, 0, len(melodies))
	for i, m := range melodies {
		out = append(out, Phrase{
			Name:  fmt.Sprintf("%s-%d", prefix, i+1),
			Notes: append([]model.Note(nil), m.Notes...),
		})
	}
	return out
}

var pitchNames = map[string]int{
	"C": 1, "C#": 2, "DB": 2, "D": 3, "D#": 4, "EB": 4, "E": 5, "F": 6,
	"F#": 7, "GB": 7, "G": 8, "G#": 9, "AB": 9, "A": 10, "A#": 11, "BB": 11, "B": 12,
}

// ParseNotes reads space separated tokens such as "C4:1", "F#3:0.5" or "R:2".
func ParseNotes(s string) ([]model.Note, error) {
	fields := strings.Fields(s)
	notes := make([]model.Note, 0, len(fields))
	for _, tok := range fields {
		n, err := parseToken(tok)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, nil
}

func parseToken(tok string) (model.Note, error) {
	pitch, dur, ok := strings.Cut(tok, ":")
	if !ok {
		return model.Note{}, fmt.Errorf("note %q: missing duration", tok)
	}
	duration, err := strconv.ParseFloat(dur, 64)
	if err != nil {
		return model.Note{}, fmt.Errorf("note %q: bad duration: %w", tok, err)
	}

	n := model.Note{Octave: 4, PitchClass: model.Rest, Duration: duration}
	if !strings.EqualFold(pitch, "R") {
		split := strings.IndexAny(pitch, "0123456789")
		if split <= 0 {
			return model.Note{}, fmt.Errorf("note %q: missing octave", tok)
		}
		pc, ok := pitchNames[strings.ToUpper(pitch[:split])]
		if !ok {
			return model.Note{}, fmt.Errorf("note %q: unknown pitch %q", tok, pitch[:split])
		}
		octave, err := strconv.Atoi(pitch[split:])
		if err != nil {
			return model.Note{}, fmt.Errorf("note %q: bad octave: %w", tok, err)
		}
		n.Octave = octave
		n.PitchClass = pc
	}
	if err := validateNote(n); err != nil {
		return model.Note{}, fmt.Errorf("note %q: %w", tok, err)
	}
	return n, nil
}

func validateNote(n model.Note) error {
	if n.PitchClass < model.Rest || n.PitchClass > model.PitchClasses {
		return fmt.Errorf("pitch class %d out of range", n.PitchClass)
	}
	if !n.IsRest() && (n.Octave < model.MinOctave || n.Octave > model.MaxOctave) {
		return fmt.Errorf("octave %d outside [%d, %d]", n.Octave, model.MinOctave, model.MaxOctave)
	}
	for _, d := range model.Durations {
		if n.Duration == d {
			return nil
		}
	}
	return fmt.Errorf("duration %g is not one of %v", n.Duration, model.Durations)
}

// FormatNotes is the inverse of ParseNotes.
func FormatNotes(notes []model.Note) string {
	parts := make([]string, 0, len(notes))
	for _, n := range notes {
		d := strconv.FormatFloat(n.Duration, 'g', -1, 64)
		if n.IsRest() {
			parts = append(parts, "R:"+d)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s%d:%s", model.ChromaName(n.Chroma()), n.Octave, d))
	}
	return strings.Join(parts, " ")
}
