package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"ecreceive/internal/dataset"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List datasets waiting in the spool directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			entries, err := os.ReadDir(cfg.Paths.SpoolDir)
			if err != nil {
				return fmt.Errorf("read spool directory: %w", err)
			}

			seen := make(map[string]*dataset.Dataset)
			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}
				ds := dataset.New(filepath.Join(cfg.Paths.SpoolDir, entry.Name()))
				if _, ok := seen[ds.Filename()]; !ok {
					seen[ds.Filename()] = ds
				}
			}

			out := cmd.OutOrStdout()
			if len(seen) == 0 {
				fmt.Fprintf(out, "Spool directory %s is empty.\n", cfg.Paths.SpoolDir)
				return nil
			}

			names := make([]string, 0, len(seen))
			for name := range seen {
				names = append(names, name)
			}
			sort.Strings(names)

			headers := table.Row{"Dataset", "State", "Size"}
			if verify {
				headers = append(headers, "Checksum")
			}
			rows := make([]table.Row, 0, len(names))
			for _, name := range names {
				ds := seen[name]
				row := table.Row{name, ds.State(), datasetSize(ds)}
				if verify {
					row = append(row, verifyLabel(ds))
				}
				rows = append(rows, row)
			}
			fmt.Fprintln(out, renderTable(headers, rows, 3))
			fmt.Fprintln(out, summaryLine(len(names), cfg.Paths.SpoolDir, out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "Compute and compare checksums (reads every data file)")
	return cmd
}

func datasetSize(ds *dataset.Dataset) string {
	info, err := os.Stat(ds.DataPath)
	if err != nil {
		return "-"
	}
	return fmt.Sprintf("%d", info.Size())
}

func verifyLabel(ds *dataset.Dataset) string {
	if !ds.Complete() {
		return "-"
	}
	valid, err := ds.Valid()
	switch {
	case err != nil:
		return "error"
	case valid:
		return "ok"
	default:
		return "mismatch"
	}
}

func summaryLine(count int, dir string, out io.Writer) string {
	line := fmt.Sprintf("%d dataset(s) in %s", count, dir)
	if file, ok := out.(*os.File); ok {
		fd := file.Fd()
		if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
			return "\x1b[1m" + line + "\x1b[0m"
		}
	}
	return line
}
