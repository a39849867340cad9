package output

import (
	"bytes"
	"encoding/json"
)

// jsonOutput represents the full JSON output structure.
type jsonOutput struct {
	Manifest jsonManifest `json:"manifest"`
	Files    []FileInfo   `json:"files"`
	Totals   jsonTotals   `json:"totals"`
	Warnings []string     `json:"warnings,omitempty"`
}

type jsonManifest struct {
	Source string `json:"source"`
	Header
}

type jsonTotals struct {
	Files     int    `json:"files"`
	Size      uint64 `json:"size"`
	SizeHuman string `json:"size_human"`
	Chunks    int    `json:"chunks"`
}

// JSONFormatter formats output as a single indented JSON object.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Result) error {
	files := r.Files
	if files == nil {
		files = []FileInfo{}
	}

	out := jsonOutput{
		Manifest: jsonManifest{Source: r.Source, Header: r.Header},
		Files:    files,
		Totals: jsonTotals{
			Files:     len(r.Files),
			Size:      r.TotalSize(),
			SizeHuman: formatSize(r.TotalSize()),
			Chunks:    r.TotalChunks(),
		},
		Warnings: r.Warnings,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

// Ensure JSONFormatter implements Formatter.
var _ Formatter = (*JSONFormatter)(nil)

// JSONLFormatter formats output as newline-delimited JSON, one compact
// object per file, suitable for jq.
type JSONLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONLFormatter) Format(w *bytes.Buffer, r *Result) error {
	for _, file := range r.Files {
		data, err := json.Marshal(file)
		if err != nil {
			return err
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	return nil
}

func init() {
	Register("jsonl", func() Formatter {
		return &JSONLFormatter{}
	})
}

// Ensure JSONLFormatter implements Formatter.
var _ Formatter = (*JSONLFormatter)(nil)
