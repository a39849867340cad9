package output

import (
	"bytes"
	"strconv"
	"text/tabwriter"
)

// PlainFormatter formats output as an aligned table without styling.
// It is meant for scripting and piping.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	if _, err := tw.Write([]byte("SIZE\tFLAGS\tCHUNKS\tNAME\n")); err != nil {
		return err
	}

	for _, file := range r.Files {
		row := file.SizeHuman + "\t" + file.Flags + "\t" + strconv.Itoa(file.Chunks) + "\t" + file.Name + "\n"
		if _, err := tw.Write([]byte(row)); err != nil {
			return err
		}
	}

	return tw.Flush()
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

// Ensure PlainFormatter implements Formatter.
var _ Formatter = (*PlainFormatter)(nil)
