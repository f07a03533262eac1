package main

import (
	"fmt"
	"io"

	"cellscript/cmd/cellscript/ui"
	"cellscript/internal/render"
	"cellscript/internal/session"
	"cellscript/internal/store"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var outputFormat string

// runCmd executes every cell of a workbook file once
var runCmd = &cobra.Command{
	Use:   "run [workbook.yaml]",
	Short: "Execute every cell of a workbook file and print the results",
	Long: `Loads a YAML workbook, runs each sheet's cells in address order and prints
the classified result of every cell.

Example workbook:
  sheets:
    Sheet1:
      A1: "x = 5"
      A2: "x * 2"
  names:
    inputs: Sheet1!A1:A2`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkbook,
}

func runWorkbook(cmd *cobra.Command, args []string) error {
	ws, cfg, err := loadWorkspace()
	if err != nil {
		return err
	}
	path := resolvePath(ws, args[0])
	logger.Info("Running workbook", zap.String("path", path), zap.String("format", outputFormat))

	fs, err := store.NewFileStore(afero.NewOsFs(), path)
	if err != nil {
		return err
	}
	wb, err := session.NewFromConfig(ws, cfg, fs, nil)
	if err != nil {
		return err
	}
	defer wb.Close()

	loadErr := wb.Load()
	// Sheets load in name order; a second pass settles references to sheets
	// that loaded later.
	if len(wb.Containers()) > 1 {
		if err := wb.RunAll(); err != nil {
			logger.Warn("Second pass failed", zap.Error(err))
		}
	}

	if err := printResults(cmd.OutOrStdout(), wb, outputFormat); err != nil {
		return err
	}
	cs := wb.CacheStats()
	logger.Info("Workbook run complete",
		zap.Int("containers", len(wb.Containers())),
		zap.Int("cache_entries", cs.Entries),
		zap.Int("cache_hits", cs.Hits),
		zap.Int("cache_misses", cs.Misses))
	if loadErr != nil {
		return fmt.Errorf("workbook loaded with errors: %w", loadErr)
	}
	return nil
}

// printResults writes the current result of every cell in the workbook.
func printResults(out io.Writer, wb *session.Workbook, format string) error {
	switch format {
	case "table":
		styles := ui.DefaultStyles()
		for _, id := range wb.Containers() {
			s, _ := wb.Lookup(id)
			fmt.Fprint(out, ui.ResultTable(id, s.Results(), styles).View(styles))
		}
		return nil
	case "text", "json":
	default:
		return fmt.Errorf("unknown format %q (valid: table, text, json)", format)
	}

	var r render.Renderer = render.NewTextWriter(out)
	if format == "json" {
		r = render.NewJSONWriter(out)
	}
	for _, id := range wb.Containers() {
		s, _ := wb.Lookup(id)
		for _, c := range s.Results() {
			if err := r.Render(c.Address, c.Result); err != nil {
				return err
			}
		}
	}
	return nil
}
