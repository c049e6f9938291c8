package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"reserveScope/internal/checkpoint"
	"reserveScope/internal/config"
	"reserveScope/internal/storage"
)

func newMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <checkpoint.json>...",
		Short: "Merge checkpoint files into the configured store",
		Long: "Merge checkpoint files, in argument order, into the configured checkpoint store. " +
			"The resume height becomes the lowest of all inputs and later inputs win on address collisions.",
		Args: cobra.MinimumNArgs(1),
		RunE: runMerge,
	}
}

func runMerge(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// The stored checkpoint, when present, is the first input.
	var merged *checkpoint.Checkpoint
	current, ok, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	if ok {
		if merged, err = checkpoint.FromSnapshot(current); err != nil {
			return err
		}
	}

	for _, path := range args {
		snapshot, ok, err := storage.NewFileStore(path).Load(ctx)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		if !ok {
			return fmt.Errorf("load %s: no checkpoint", path)
		}
		incoming, err := checkpoint.FromSnapshot(snapshot)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		if merged == nil {
			merged = incoming
			continue
		}
		merged.Merge(incoming)
		logger.Info("merged checkpoint", zap.String("path", path), zap.Stringer("checkpoint", merged))
	}

	snapshot, err := merged.ToSnapshot()
	if err != nil {
		return err
	}
	if err := store.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), merged.String())
	return nil
}
