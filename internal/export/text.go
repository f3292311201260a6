package export

import (
	"fmt"
	"io"
	"strings"

	"melodyevo/internal/model"
)

// Text renders notes as "C4(1) R(0.5) ...".
func Text(m model.Melody) string {
	return m.String()
}

// WriteBars writes one line per 4/4 bar with a bar number prefix. A note
// that crosses a barline is listed in the bar where it starts.
func WriteBars(w io.Writer, m model.Melody) error {
	var (
		bar   = 0
		onset = 0.0
		line  []string
	)
	flush := func() error {
		if len(line) == 0 {
			return nil
		}
		_, err := fmt.Fprintf(w, "%3d | %s\n", bar+1, strings.Join(line, " "))
		line = line[:0]
		return err
	}
	for _, n := range m.Notes {
		for onset >= float64((bar+1)*model.BeatsPerBar)-model.DurationEpsilon {
			if err := flush(); err != nil {
				return err
			}
			bar++
		}
		line = append(line, n.String())
		onset += n.Duration
	}
	return flush()
}
