package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/depotkit/pkg/depot/catalog"
	"github.com/jamesainslie/depotkit/pkg/depot/manifest"
	"github.com/jamesainslie/depotkit/pkg/depot/output"
)

func newInfoCommand(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "info <manifest>",
		Short: "Show manifest metadata",
		Long: `Display the metadata section of a manifest together with listing counts.

Formats: text (default), json, yaml.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load(args[0])
			if err != nil {
				return err
			}

			return a.printSummary(catalog.Summarize(args[0], m), format, m.ComputeListingChecksum())
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text, json, yaml)")
	return cmd
}

// printSummary writes one summary in the given format. The text format
// also shows listingCRC, the checksum a save would write.
func (a *app) printSummary(s *catalog.Summary, format string, listingCRC uint32) error {
	switch format {
	case "json":
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "yaml":
		enc := yaml.NewEncoder(a.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
	default:
		return fmt.Errorf("unknown info format %q: available formats are [json text yaml]", format)
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"Path", s.Path},
		{"Depot", fmt.Sprintf("%d", s.DepotID)},
		{"Manifest", fmt.Sprintf("%d", s.ManifestID)},
		{"Created", s.Created.Format(time.RFC3339)},
		{"Filenames encrypted", fmt.Sprintf("%t", s.FilenamesEncrypted)},
		{"Files", humanize.Comma(int64(s.Files))},
		{"Directories", humanize.Comma(int64(s.Directories))},
		{"Install scripts", humanize.Comma(int64(s.InstallScripts))},
		{"Chunks", humanize.Comma(int64(s.Chunks))},
		{"Unique chunks", humanize.Comma(int64(s.UniqueChunks))},
		{"Size on disk", fmt.Sprintf("%s (%d bytes)", humanize.IBytes(s.SizeOnDisk), s.SizeOnDisk)},
		{"Compressed size", fmt.Sprintf("%s (%d bytes)", humanize.IBytes(s.CompressedSizeOnDisk), s.CompressedSizeOnDisk)},
		{"CRC encrypted", fmt.Sprintf("%08x", s.CRCEncrypted)},
		{"CRC clear", fmt.Sprintf("%08x", s.CRCClear)},
		{"Signature", fmt.Sprintf("%d bytes", s.SignatureSize)},
	}
	if listingCRC != s.CRCClear {
		rows = append(rows, [2]string{"Listing CRC", fmt.Sprintf("%08x (stale crc clear)", listingCRC)})
	}
	for _, row := range rows {
		fmt.Fprintf(tw, "%s:\t%s\n", row[0], row[1])
	}
	return tw.Flush()
}

func newFilesCommand(a *app) *cobra.Command {
	var (
		dirs, scripts bool
		format, tmpl  string
		key           keyFlag
	)

	cmd := &cobra.Command{
		Use:   "files <manifest>",
		Short: "List the files in a manifest",
		Long: `List the entries of a manifest's file listing in sorted order.

Encrypted filenames are decrypted when a key is given with --key or
configured under keys.<depot id>.

Formats: ` + fmt.Sprint(output.Available()),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := a.formatter(format, tmpl)
			if err != nil {
				return err
			}

			m, err := manifest.Load(args[0])
			if err != nil {
				return err
			}

			var warnings []string
			if w := a.tryDecrypt(m, &key); w != "" {
				warnings = append(warnings, w)
			}
			m.Listing.Sort()

			var files []*manifest.File
			switch {
			case dirs:
				files = m.Directories()
			case scripts:
				files = m.InstallScripts()
			default:
				files = m.Listing.All()
			}

			result := output.FromManifest(args[0], m, files)
			result.Warnings = warnings

			var buf bytes.Buffer
			if err := formatter.Format(&buf, result); err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}
			_, err = a.stdout.Write(buf.Bytes())
			return err
		},
	}

	cmd.Flags().BoolVar(&dirs, "dirs", false, "list only directories")
	cmd.Flags().BoolVar(&scripts, "scripts", false, "list only install scripts")
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format (default from config)")
	cmd.Flags().StringVar(&tmpl, "template", "", "Go template for -f template")
	cmd.Flags().StringVar(&key.hex, "key", "", "filename key as 64 hex characters")
	cmd.MarkFlagsMutuallyExclusive("dirs", "scripts")
	return cmd
}

// saveFlags holds the output options shared by decrypt and rewrite.
type saveFlags struct {
	output        string
	keepSignature bool
}

func (s *saveFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&s.output, "output", "o", "", "output path (default: overwrite the input)")
	cmd.Flags().BoolVar(&s.keepSignature, "keep-signature", false, "keep the signature section")
}

// save writes m to the output path, or back to input.
func (a *app) save(m *manifest.Manifest, input string, s *saveFlags) (string, error) {
	path := s.output
	if path == "" {
		path = input
	}

	keep := s.keepSignature || a.cfg.Save.KeepSignature
	if err := m.Save(path, manifest.WithStripSignature(!keep)); err != nil {
		return "", err
	}
	return path, nil
}

func newDecryptCommand(a *app) *cobra.Command {
	var (
		key  keyFlag
		save saveFlags
	)

	cmd := &cobra.Command{
		Use:   "decrypt <manifest>",
		Short: "Decrypt filenames and save the manifest",
		Long: `Decrypt every filename in the listing with the depot key and save the
manifest with clear names. The signature is stripped unless
--keep-signature is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load(args[0])
			if err != nil {
				return err
			}

			if !m.Metadata.FilenamesEncrypted {
				a.printInfo("Filenames in %s are not encrypted", args[0])
				return nil
			}

			k, err := key.resolve(a.cfg, m.Metadata.DepotID)
			if err != nil {
				return err
			}
			if !m.DecryptFilenames(k) {
				return fmt.Errorf("could not decrypt filenames for depot %d; the key is probably wrong", m.Metadata.DepotID)
			}

			path, err := a.save(m, args[0], &save)
			if err != nil {
				return err
			}

			a.printInfo("Decrypted %d filenames, saved %s (crc %08x)", len(m.Listing.Entries), path, m.Metadata.CRCClear)
			return nil
		},
	}

	cmd.Flags().StringVar(&key.hex, "key", "", "filename key as 64 hex characters")
	save.register(cmd)
	return cmd
}

func newRewriteCommand(a *app) *cobra.Command {
	var save saveFlags

	cmd := &cobra.Command{
		Use:   "rewrite <manifest>",
		Short: "Re-encode a manifest in canonical form",
		Long: `Load a manifest and save it again: the listing is sorted, the listing
checksum is recomputed and the signature is stripped unless
--keep-signature is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load(args[0])
			if err != nil {
				return err
			}

			before := m.Metadata.CRCClear
			path, err := a.save(m, args[0], &save)
			if err != nil {
				return err
			}

			a.printInfo("Saved %s (crc %08x -> %08x)", path, before, m.Metadata.CRCClear)
			return nil
		},
	}

	save.register(cmd)
	return cmd
}
