package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// PrettyFormatter formats output with colors and boxes for terminal display.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")
	w.WriteString(f.formatTable(r))
	w.WriteString(f.formatFooter(r))

	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatWarnings(r.Warnings))
	}

	return nil
}

func field(label, value string) string {
	return LabelStyle.Render(label) + " " + ValueStyle.Render(value)
}

// formatHeader builds the header box with manifest metadata.
func (f *PrettyFormatter) formatHeader(r *Result) string {
	h := r.Header
	lines := []string{
		field("Source:", r.Source),
		strings.Join([]string{
			field("Depot:", fmt.Sprintf("%d", h.DepotID)),
			field("Manifest:", fmt.Sprintf("%d", h.ManifestID)),
			field("Created:", h.Created.Format("2006-01-02 15:04:05 MST")),
		}, "  "),
		strings.Join([]string{
			field("On disk:", humanize.IBytes(h.SizeOnDisk)),
			field("Compressed:", humanize.IBytes(h.CompressedSizeOnDisk)),
			field("Unique chunks:", humanize.Comma(int64(h.UniqueChunks))),
		}, "  "),
	}

	var status []string
	if h.FilenamesEncrypted {
		status = append(status, WarningStyle.Render("filenames: encrypted"))
	} else {
		status = append(status, SuccessStyle.Render("filenames: clear"))
	}
	if h.SignatureSize > 0 {
		status = append(status, SuccessStyle.Render(fmt.Sprintf("signed (%d bytes)", h.SignatureSize)))
	} else {
		status = append(status, MutedStyle.Render("unsigned"))
	}
	status = append(status, MutedStyle.Render(fmt.Sprintf("crc %08x", h.CRCClear)))
	lines = append(lines, strings.Join(status, "  "))

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

// formatTable builds the file table.
func (f *PrettyFormatter) formatTable(r *Result) string {
	if len(r.Files) == 0 {
		return MutedStyle.Render("  No files in listing\n")
	}

	sizeWidth, flagWidth := 8, 5
	for _, file := range r.Files {
		sizeWidth = max(sizeWidth, len(file.SizeHuman))
		flagWidth = max(flagWidth, len(file.Flags))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "  %s  %s  %s  %s\n",
		TableHeaderStyle.Render(padLeft("SIZE", sizeWidth)),
		TableHeaderStyle.Render(padRight("FLAGS", flagWidth)),
		TableHeaderStyle.Render("CHUNKS"),
		TableHeaderStyle.Render("NAME"))

	for _, file := range r.Files {
		name := NameStyle.Render(file.Name)
		if file.Directory {
			name = DirStyle.Render(file.Name + "/")
		}
		fmt.Fprintf(&sb, "  %s  %s  %s  %s\n",
			SizeStyle.Render(padLeft(file.SizeHuman, sizeWidth)),
			FlagStyle.Render(padRight(file.Flags, flagWidth)),
			MutedStyle.Render(padLeft(fmt.Sprintf("%d", file.Chunks), 6)),
			name)
	}

	return sb.String()
}

// formatFooter builds the footer box with totals.
func (f *PrettyFormatter) formatFooter(r *Result) string {
	parts := []string{
		field("Files:", humanize.Comma(int64(len(r.Files)))),
		LabelStyle.Render("Total:") + " " + SizeStyle.Render(humanize.IBytes(r.TotalSize())),
		field("Chunks:", humanize.Comma(int64(r.TotalChunks()))),
		MutedStyle.Render("Use -f plain for unformatted output"),
	}
	return FooterBox.Render(strings.Join(parts, "  "))
}

func (f *PrettyFormatter) formatWarnings(warnings []string) string {
	var sb strings.Builder

	sb.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
	sb.WriteString("\n")
	for _, warning := range warnings {
		sb.WriteString(WarningStyle.Render("  " + warning))
		sb.WriteString("\n")
	}

	return sb.String()
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)
