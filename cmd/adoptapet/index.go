package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/adoptapet/internal/usecase/ingest"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the pet vector index",
}

var indexCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the index with text and image vector fields",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.repo.CreateIndex(cmd.Context()); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "index %q created (dim=%d)\n", a.cfg.Index.Name, a.cfg.Index.Dimensions)
		return nil
	},
}

var indexDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Drop the pet index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.repo.DropIndex(cmd.Context()); err != nil {
			return fmt.Errorf("drop index: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "index %q dropped\n", a.cfg.Index.Name)
		return nil
	},
}

var indexDeleteCmd = &cobra.Command{
	Use:   "delete <pet_id>...",
	Short: "Remove pets from the index, e.g. once adopted",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.close()

		for _, id := range args {
			if err := a.repo.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
		}
		return nil
	},
}

var indexLoadCmd = &cobra.Command{
	Use:   "load <glob>",
	Short: "Bulk load precomputed JSONL pet records",
	Example: `  adoptapet index load 'data/embeddings/**/*.jsonl'`,
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexLoad,
}

func init() {
	indexLoadCmd.Flags().Bool("create", true, "create the index first if it does not exist")
	indexCmd.AddCommand(indexCreateCmd, indexDropCmd, indexLoadCmd, indexDeleteCmd)
}

func runIndexLoad(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if create, _ := cmd.Flags().GetBool("create"); create {
		exists, err := a.repo.IndexExists(ctx)
		if err != nil {
			return fmt.Errorf("check index: %w", err)
		}
		if !exists {
			if err := a.repo.CreateIndex(ctx); err != nil {
				return fmt.Errorf("create index: %w", err)
			}
			a.logger.Info("Index created", zap.String("index", a.cfg.Index.Name))
		}
	}

	svc := ingest.New(a.repo, ingest.Config{
		BatchSize:  a.cfg.Index.BatchSize,
		Workers:    a.cfg.Index.LoadWorkers,
		Dimensions: a.cfg.Index.Dimensions,
	}, a.logger)

	report, err := svc.LoadGlob(ctx, args[0])
	fmt.Fprintf(cmd.OutOrStdout(), "files=%d lines=%d loaded=%d rejected=%d\n",
		report.Files, report.Lines, report.Loaded, report.Rejected)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	return nil
}
