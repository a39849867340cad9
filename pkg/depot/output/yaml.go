package output

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

// yamlOutput mirrors the JSON document structure.
type yamlOutput struct {
	Manifest yamlManifest `yaml:"manifest"`
	Files    []FileInfo   `yaml:"files"`
	Totals   yamlTotals   `yaml:"totals"`
	Warnings []string     `yaml:"warnings,omitempty"`
}

type yamlManifest struct {
	Source string `yaml:"source"`
	Header `yaml:",inline"`
}

type yamlTotals struct {
	Files     int    `yaml:"files"`
	Size      uint64 `yaml:"size"`
	SizeHuman string `yaml:"size_human"`
	Chunks    int    `yaml:"chunks"`
}

// YAMLFormatter formats output as YAML.
// It produces the same structure as JSONFormatter but in YAML format.
type YAMLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *YAMLFormatter) Format(w *bytes.Buffer, r *Result) error {
	files := r.Files
	if files == nil {
		files = []FileInfo{}
	}

	out := yamlOutput{
		Manifest: yamlManifest{Source: r.Source, Header: r.Header},
		Files:    files,
		Totals: yamlTotals{
			Files:     len(r.Files),
			Size:      r.TotalSize(),
			SizeHuman: formatSize(r.TotalSize()),
			Chunks:    r.TotalChunks(),
		},
		Warnings: r.Warnings,
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(out); err != nil {
		return err
	}
	return encoder.Close()
}

func init() {
	Register("yaml", func() Formatter {
		return &YAMLFormatter{}
	})
}

// Ensure YAMLFormatter implements Formatter.
var _ Formatter = (*YAMLFormatter)(nil)
