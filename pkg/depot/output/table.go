package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
)

var tableColumns = []string{"SIZE", "FLAGS", "CHUNKS", "SHA", "NAME"}

// row returns the table cells for a file, in tableColumns order.
func row(file FileInfo) []string {
	return []string{strconv.FormatUint(file.Size, 10), file.Flags, strconv.Itoa(file.Chunks), file.SHA, file.Name}
}

// TSVFormatter formats output as tab-separated values with raw byte sizes.
type TSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *TSVFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(strings.Join(tableColumns, "\t"))
	w.WriteByte('\n')

	for _, file := range r.Files {
		w.WriteString(strings.Join(row(file), "\t"))
		w.WriteByte('\n')
	}

	return nil
}

func init() {
	Register("tsv", func() Formatter {
		return &TSVFormatter{}
	})
}

// Ensure TSVFormatter implements Formatter.
var _ Formatter = (*TSVFormatter)(nil)

// CSVFormatter formats output as comma-separated values with proper quoting.
// It uses encoding/csv for RFC 4180 compliant output.
type CSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *CSVFormatter) Format(w *bytes.Buffer, r *Result) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(tableColumns); err != nil {
		return err
	}

	for _, file := range r.Files {
		if err := writer.Write(row(file)); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func init() {
	Register("csv", func() Formatter {
		return &CSVFormatter{}
	})
}

// Ensure CSVFormatter implements Formatter.
var _ Formatter = (*CSVFormatter)(nil)

// MarkdownFormatter formats output as a GitHub-flavored Markdown table.
// Sizes are human-readable; the hash column is left out.
type MarkdownFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *MarkdownFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString("| SIZE | FLAGS | CHUNKS | NAME |\n")
	w.WriteString("|-----:|-------|-------:|------|\n")

	for _, file := range r.Files {
		fmt.Fprintf(w, "| %s | %s | %d | %s |\n",
			escapeMarkdownPipe(file.SizeHuman),
			escapeMarkdownPipe(file.Flags),
			file.Chunks,
			escapeMarkdownPipe(file.Name))
	}

	return nil
}

// escapeMarkdownPipe escapes pipe characters in a string for Markdown tables.
// Flag sets are joined with "|" so they always need it.
func escapeMarkdownPipe(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func init() {
	Register("markdown", func() Formatter {
		return &MarkdownFormatter{}
	})
}

// Ensure MarkdownFormatter implements Formatter.
var _ Formatter = (*MarkdownFormatter)(nil)
