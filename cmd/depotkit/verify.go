package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/depotkit/pkg/depot/adler32"
	"github.com/jamesainslie/depotkit/pkg/depot/chunkstore"
	"github.com/jamesainslie/depotkit/pkg/depot/manifest"
	"github.com/jamesainslie/depotkit/pkg/depot/output"
)

// errVerifyFailed is returned when at least one chunk did not verify.
var errVerifyFailed = errors.New("verification failed")

func newVerifyCommand(a *app) *cobra.Command {
	var (
		chunkDir string
		workers  int
		format   string
		key      keyFlag
	)

	cmd := &cobra.Command{
		Use:   "verify <manifest>",
		Short: "Verify a chunk store against a manifest",
		Long: `Check every chunk listed in the manifest against a directory of chunk
files named by their hex SHA-1. Each chunk's size and Adler-32 checksum
must match the listing.

The command exits non-zero when any chunk is missing or corrupt.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if chunkDir == "" {
				chunkDir = a.cfg.Verify.ChunkDir
			}
			if chunkDir == "" {
				return fmt.Errorf("--chunks is required (or set verify.chunk_dir)")
			}
			if workers == 0 {
				workers = a.cfg.Verify.Workers
			}

			m, err := manifest.Load(args[0])
			if err != nil {
				return err
			}
			if w := a.tryDecrypt(m, &key); w != "" {
				a.printVerbose("%s", w)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := chunkstore.New(chunkDir).Verify(ctx, m, chunkstore.Options{Workers: workers})
			if err != nil {
				if errors.Is(err, context.Canceled) {
					a.printInfo("Verification cancelled")
				}
				return err
			}

			if err := a.printReport(report, format); err != nil {
				return err
			}
			if !report.OK() {
				return errVerifyFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&chunkDir, "chunks", "", "chunk store directory (default from config)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "files verified concurrently (default from config)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text, json)")
	cmd.Flags().StringVar(&key.hex, "key", "", "filename key, used to show clear names in failures")
	return cmd
}

func (a *app) printReport(r *chunkstore.Report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "text", "":
	default:
		return fmt.Errorf("unknown verify format %q: available formats are [json text]", format)
	}

	for _, f := range r.Failures {
		fmt.Fprintf(a.stdout, "%s  %s @%d  %s\n",
			output.ErrorStyle.Render("FAIL"), f.File, f.Offset, f.Reason)
	}

	status := output.SuccessStyle.Render("OK")
	if !r.OK() {
		status = output.ErrorStyle.Render("FAILED")
	}
	fmt.Fprintf(a.stdout, "%s  %s/%s files, %s/%s chunks valid (%s missing, %s mismatched)\n",
		status,
		humanize.Comma(int64(r.ValidFiles)), humanize.Comma(int64(r.Files)),
		humanize.Comma(r.Valid), humanize.Comma(r.Checked),
		humanize.Comma(r.Missing), humanize.Comma(r.Mismatched))
	return nil
}

func newAdler32Command(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "adler32 <file>...",
		Short: "Print the Adler-32 checksum of files",
		Long: `Print the Adler-32 checksum used for chunks, in hex, for each file.
Use - to read standard input.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				sum, err := checksumFile(path, cmd.InOrStdin())
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "%08x  %s\n", sum, path)
			}
			return nil
		},
	}
}

func checksumFile(path string, stdin io.Reader) (uint32, error) {
	h := adler32.New()

	if path == "-" {
		if _, err := io.Copy(h, stdin); err != nil {
			return 0, fmt.Errorf("reading stdin: %w", err)
		}
		return h.Sum32(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	return h.Sum32(), nil
}
