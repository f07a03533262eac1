package main

import (
	"fmt"

	"cellscript/cmd/cellscript/ui"
	"cellscript/internal/session"
	"cellscript/internal/store"
	"cellscript/internal/types"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cellContainer string

// cellCmd edits cells kept in the workspace database
var cellCmd = &cobra.Command{
	Use:   "cell",
	Short: "Edit cells stored in the workspace database",
	Long: `Reads and writes cell sources in the SQLite database configured under
store.database_path. Every edit reruns the affected cells and prints the
edited cell's result.`,
}

var cellSetCmd = &cobra.Command{
	Use:   "set [cell] [source]",
	Short: "Set the source of a cell",
	Long: `Examples:
  cellscript cell set A1 "x = 5"
  cellscript cell set Data!B2 "ref('Sheet1!A1') * 2"`,
	Args: cobra.ExactArgs(2),
	RunE: setCell,
}

var cellRmCmd = &cobra.Command{
	Use:   "rm [cell]",
	Short: "Remove a cell",
	Args:  cobra.ExactArgs(1),
	RunE:  removeCell,
}

var cellShowCmd = &cobra.Command{
	Use:   "show [sheet]",
	Short: "Show the results of every stored cell",
	Args:  cobra.MaximumNArgs(1),
	RunE:  showCells,
}

// openDatabase loads every stored cell into a workbook backed by the
// configured SQLite store.
func openDatabase() (*session.Workbook, *store.SQLiteStore, error) {
	ws, cfg, err := loadWorkspace()
	if err != nil {
		return nil, nil, err
	}
	dbPath := resolvePath(ws, cfg.Store.DatabasePath)
	logger.Debug("Opening cell store", zap.String("driver", cfg.Store.Driver), zap.String("path", dbPath))

	st, err := store.NewSQLiteStore(cfg.Store.Driver, dbPath)
	if err != nil {
		return nil, nil, err
	}
	wb, err := session.NewFromConfig(ws, cfg, st, nil)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	if err := wb.Load(); err != nil {
		logger.Warn("Stored cells loaded with errors", zap.Error(err))
	}
	return wb, st, nil
}

func setCell(cmd *cobra.Command, args []string) error {
	addr, err := types.ParseAddress(args[0], cellContainer)
	if err != nil {
		return err
	}
	wb, st, err := openDatabase()
	if err != nil {
		return err
	}
	defer wb.Close()

	r, err := wb.Container(addr.Container).OnSourceChanged(addr, args[1])
	if err != nil {
		return err
	}
	rev, err := st.Revision(addr)
	if err != nil {
		return err
	}
	styles := ui.DefaultStyles()
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %s\n",
		styles.Bold.Render(addr.String()),
		styles.Muted.Render(fmt.Sprintf("rev %d", rev)),
		styles.Badge.Render(r.Kind().String()),
		styles.ForKind(r.Kind()).Render(r.String()))
	return nil
}

func removeCell(cmd *cobra.Command, args []string) error {
	addr, err := types.ParseAddress(args[0], cellContainer)
	if err != nil {
		return err
	}
	wb, _, err := openDatabase()
	if err != nil {
		return err
	}
	defer wb.Close()

	if err := wb.Container(addr.Container).OnSourceRemoved(addr); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", addr)
	return nil
}

func showCells(cmd *cobra.Command, args []string) error {
	wb, _, err := openDatabase()
	if err != nil {
		return err
	}
	defer wb.Close()

	ids := wb.Containers()
	if len(args) == 1 {
		if _, ok := wb.Lookup(args[0]); !ok {
			return fmt.Errorf("no cells stored in %s", args[0])
		}
		ids = args[:1]
	}

	styles := ui.DefaultStyles()
	out := cmd.OutOrStdout()
	for _, id := range ids {
		s, _ := wb.Lookup(id)
		fmt.Fprint(out, ui.ResultTable(id, s.Results(), styles).View(styles))
	}
	return nil
}
