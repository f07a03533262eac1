package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"cellscript/internal/render"
	"cellscript/internal/session"
	"cellscript/internal/watch"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// watchCmd reruns a workbook file as it is edited
var watchCmd = &cobra.Command{
	Use:   "watch [workbook.yaml]",
	Short: "Watch a workbook file and print results as cells change",
	Long: `Runs the workbook, then watches the file. Each saved version is compared
with the previous one and only the added, replaced and removed cells are
applied, so unaffected cells are not rerun. Results are printed as they are
delivered. Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: watchWorkbook,
}

func watchWorkbook(cmd *cobra.Command, args []string) error {
	ws, cfg, err := loadWorkspace()
	if err != nil {
		return err
	}
	path := resolvePath(ws, args[0])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The file is the source of truth here; nothing is written back.
	wb, err := session.NewFromConfig(ws, cfg, nil, render.NewTextWriter(cmd.OutOrStdout()))
	if err != nil {
		return err
	}

	w, err := watch.New(afero.NewOsFs(), path, wb, watch.Options{
		OnApplied: func(a watch.Applied) {
			if a.Err != nil {
				logger.Warn("Workbook version applied with errors", zap.String("path", path), zap.Error(a.Err))
				return
			}
			logger.Info("Workbook version applied",
				zap.String("path", path),
				zap.Int("cells", len(a.Changes)),
				zap.Int("names", len(a.Names)))
		},
	})
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	logger.Info("Watching workbook", zap.String("path", path))

	<-ctx.Done()
	logger.Info("Received shutdown signal")
	if err := w.Stop(); err != nil {
		return err
	}
	stats := w.Stats()
	cs := wb.CacheStats()
	logger.Info("Stopped watching",
		zap.Int("events", stats.Events),
		zap.Int("versions", stats.Versions),
		zap.Int("errors", stats.Errors),
		zap.Int("cache_hits", cs.Hits),
		zap.Int("cache_misses", cs.Misses))
	return nil
}
