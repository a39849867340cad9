package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/depotkit/pkg/depot/catalog"
)

// indexFlags holds the options shared by the index subcommands.
type indexFlags struct {
	path       string
	extensions string
}

func (f *indexFlags) open(a *app) (*catalog.Catalog, error) {
	path := f.path
	if path == "" {
		path = a.cfg.Catalog.Path
	}
	a.printVerbose("Opening catalog %s", path)

	c, err := catalog.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	return c, nil
}

func (f *indexFlags) indexer(a *app, c *catalog.Catalog) *catalog.Indexer {
	exts := a.cfg.Catalog.Extensions
	if f.extensions != "" {
		exts = parseCommaSeparated(f.extensions)
	}
	return catalog.NewIndexer(c, exts)
}

func newIndexCommand(a *app) *cobra.Command {
	flags := &indexFlags{}

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the manifest catalog",
		Long: `The catalog records a summary of every manifest found under indexed
directories, keyed by path and searchable by depot.`,
	}

	cmd.PersistentFlags().StringVar(&flags.path, "catalog", "", "catalog directory (default from config)")
	cmd.PersistentFlags().StringVar(&flags.extensions, "ext", "", "comma-separated manifest extensions (default from config)")

	cmd.AddCommand(
		newIndexScanCommand(a, flags),
		newIndexListCommand(a, flags),
		newIndexWatchCommand(a, flags),
		newIndexClearCommand(a, flags),
	)
	return cmd
}

func newIndexScanCommand(a *app, flags *indexFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [dir]...",
		Short: "Index manifests under directories",
		Long: `Walk each directory, record every manifest that parses and drop
catalog entries under the directory whose files are gone.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"."}
			}

			c, err := flags.open(a)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			idx := flags.indexer(a, c)
			for _, root := range args {
				result, err := idx.Index(ctx, root, func(p catalog.Progress) {
					a.printVerbose("%s: %d scanned, %d indexed", p.Root, p.Scanned, p.Indexed)
				})
				if err != nil {
					return fmt.Errorf("indexing %s: %w", root, err)
				}

				for _, e := range result.Errors {
					a.printVerbose("skipped %s: %s", e.Path, e.Err)
				}
				a.printInfo("%s: indexed %d of %d manifests (%d failed, %d removed) in %s",
					result.Root, result.Indexed, result.Scanned, result.Failed, result.Removed, result.Duration.Round(time.Millisecond))
			}
			return nil
		},
	}
}

func newIndexListCommand(a *app, flags *indexFlags) *cobra.Command {
	var (
		depot  uint32
		format string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalogued manifests",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.open(a)
			if err != nil {
				return err
			}
			defer c.Close()

			list, err := c.List(depot)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				if list == nil {
					list = []*catalog.Summary{}
				}
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			case "paths":
				for _, s := range list {
					fmt.Fprintln(a.stdout, s.Path)
				}
				return nil
			case "text", "":
			default:
				return fmt.Errorf("unknown list format %q: available formats are [json paths text]", format)
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "DEPOT\tMANIFEST\tCREATED\tFILES\tSIZE\tPATH")
			for _, s := range list {
				fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%s\t%s\n",
					s.DepotID, s.ManifestID, s.Created.Format("2006-01-02"), s.Files, humanize.IBytes(s.SizeOnDisk), s.Path)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().Uint32Var(&depot, "depot", 0, "only list this depot")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text, json, paths)")
	return cmd
}

func newIndexWatchCommand(a *app, flags *indexFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir>...",
		Short: "Keep the catalog in sync with directories",
		Long: `Index each directory, then watch it and re-index manifests as they are
created, written or removed. Runs until interrupted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.open(a)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			idx := flags.indexer(a, c)
			w, err := catalog.NewWatcher(idx)
			if err != nil {
				return err
			}
			defer w.Close()

			for _, root := range args {
				abs, err := filepath.Abs(root)
				if err != nil {
					return err
				}
				if _, err := idx.Index(ctx, abs, nil); err != nil {
					return fmt.Errorf("indexing %s: %w", abs, err)
				}
				if err := w.Watch(abs); err != nil {
					return err
				}
				a.printInfo("Watching %s", abs)
			}

			w.Run(ctx, func(ev catalog.Event) {
				if ev.Err != nil {
					a.printInfo("%-7s %s: %v", ev.Kind, ev.Path, ev.Err)
					return
				}
				a.printInfo("%-7s %s", ev.Kind, ev.Path)
			})
			return nil
		},
	}
}

func newIndexClearCommand(a *app, flags *indexFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every entry from the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.open(a)
			if err != nil {
				return err
			}
			defer c.Close()

			n, err := c.Count()
			if err != nil {
				return err
			}
			if err := c.Clear(); err != nil {
				return err
			}

			a.printInfo("Removed %d entries", n)
			return nil
		},
	}
}
