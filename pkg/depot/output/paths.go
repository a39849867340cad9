package output

import (
	"bytes"
)

// PathsFormatter writes one file name per line.
type PathsFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PathsFormatter) Format(w *bytes.Buffer, r *Result) error {
	for _, file := range r.Files {
		w.WriteString(file.Name)
		w.WriteByte('\n')
	}
	return nil
}

func init() {
	Register("paths", func() Formatter {
		return &PathsFormatter{}
	})
}

// Ensure PathsFormatter implements Formatter.
var _ Formatter = (*PathsFormatter)(nil)

// NullFormatter writes file names separated by NUL bytes, for xargs -0.
// Decrypted names may contain newlines, so this is the safe choice for piping.
type NullFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *NullFormatter) Format(w *bytes.Buffer, r *Result) error {
	for _, file := range r.Files {
		w.WriteString(file.Name)
		w.WriteByte(0)
	}
	return nil
}

func init() {
	Register("null", func() Formatter {
		return &NullFormatter{}
	})
}

// Ensure NullFormatter implements Formatter.
var _ Formatter = (*NullFormatter)(nil)
