package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"ecreceive/internal/checkpoint"
)

func newCheckpointCommand(ctx *commandContext) *cobra.Command {
	checkpointCmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect and repair the checkpoint file",
	}

	checkpointCmd.AddCommand(newCheckpointListCommand(ctx))
	checkpointCmd.AddCommand(newCheckpointRemoveCommand(ctx))

	return checkpointCmd
}

func newCheckpointListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List datasets with unfinished processing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := checkpoint.Open(cfg.Paths.CheckpointPath)
			if err != nil {
				return fmt.Errorf("open checkpoint: %w", err)
			}

			keys := store.Keys()
			out := cmd.OutOrStdout()
			if len(keys) == 0 {
				fmt.Fprintln(out, "Checkpoint is empty; no unfinished datasets.")
				return nil
			}

			rows := make([]table.Row, 0, len(keys))
			for _, key := range keys {
				rows = append(rows, table.Row{key, store.Get(key).String()})
			}
			fmt.Fprintln(out, renderTable(table.Row{"Dataset", "Flags"}, rows))
			return nil
		},
	}
}

func newCheckpointRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <dataset>",
		Short: "Drop a dataset's checkpoint entry",
		Long: "Remove a dataset from the checkpoint file so the daemon no longer " +
			"considers it unfinished. Use after manually disposing of a dataset " +
			"the pipeline left for inspection.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := checkpoint.Open(cfg.Paths.CheckpointPath)
			if err != nil {
				return fmt.Errorf("open checkpoint: %w", err)
			}

			key := args[0]
			if store.Get(key) == checkpoint.FlagNone {
				return fmt.Errorf("no checkpoint entry for %q", key)
			}
			if err := store.Delete(key); err != nil {
				return fmt.Errorf("remove checkpoint entry: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed checkpoint entry for %s\n", key)
			return nil
		},
	}
}
