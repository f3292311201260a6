package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"melodyevo/internal/model"
)

func TestBuiltinPhrasesFillFourBars(t *testing.T) {
	phrases := Builtin()
	require.NotEmpty(t, phrases)
	names := map[string]bool{}
	for _, p := range phrases {
		names[p.Name] = true
		assert.InDelta(t, model.TargetDuration, p.Melody().TotalDuration(), model.DurationEpsilon, p.Name)
	}
	assert.True(t, names["twinkle"])
	assert.True(t, names["ode_to_joy"])
}

func TestParseNotes(t *testing.T) {
	notes, err := ParseNotes("C4:1 F#3:0.5 Bb5:2 R:4")
	require.NoError(t, err)
	assert.Equal(t, []model.Note{
		{Octave: 4, PitchClass: 1, Duration: 1},
		{Octave: 3, PitchClass: 7, Duration: 0.5},
		{Octave: 5, PitchClass: 11, Duration: 2},
		{Octave: 4, PitchClass: model.Rest, Duration: 4},
	}, notes)
	assert.Equal(t, "C4:1 F#3:0.5 A#5:2 R:4", FormatNotes(notes))
}

func TestParseNotesRejectsBadTokens(t *testing.T) {
	for _, tok := range []string{"C4", "H4:1", "C:1", "C9:1", "C4:3", "C4:x"} {
		_, err := ParseNotes(tok)
		assert.Error(t, err, tok)
	}
}

func TestLoadFileMixedForms(t *testing.T) {
	phrases, err := LoadFile(filepath.Join("testdata", "mixed.yaml"))
	require.NoError(t, err)
	require.Len(t, phrases, 2)

	assert.Equal(t, "compact", phrases[0].Name)
	assert.Len(t, phrases[0].Notes, 7)
	assert.Equal(t, "phrase-2", phrases[1].Name)
	assert.Equal(t, 4.0, phrases[1].Notes[0].Duration)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte("phrases: []"))
	assert.True(t, errors.Is(err, ErrNoPhrases))

	_, err = Decode([]byte("phrases:\n  - name: x\n    notes: \"\"\n"))
	assert.ErrorContains(t, err, "no notes")

	_, err = Decode([]byte("phrases:\n  - name: x\n    notes: {a: 1}\n"))
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEncodeRoundTrip(t *testing.T) {
	phrases := Builtin()
	data, err := Encode(phrases)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, phrases, decoded)
}

func TestMelodyConversions(t *testing.T) {
	phrases := Builtin()[:2]
	melodies := ToMelodies(phrases)
	require.Len(t, melodies, 2)
	melodies[0].Notes[0].Octave = 5
	assert.Equal(t, 4, phrases[0].Notes[0].Octave)

	named := FromMelodies("run", melodies)
	assert.Equal(t, "run-1", named[0].Name)
	assert.Equal(t, melodies[1].Notes, named[1].Notes)
}
