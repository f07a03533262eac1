// Command cellscript runs spreadsheet cells written as Starlark fragments.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"cellscript/internal/config"
	"cellscript/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose   bool
	workspace string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "cellscript",
	Short: "cellscript - incremental script cells for spreadsheets",
	Long: `cellscript executes the Starlark fragment in each cell of a workbook against
a namespace shared by its sheet, and classifies what every cell produced:
a scalar, a table, a series, a data frame, a plot or an error.

Editing a cell reruns only what the edit can affect.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")

	runCmd.Flags().StringVarP(&outputFormat, "format", "f", "table", "Output format: table, text or json")

	cellCmd.PersistentFlags().StringVarP(&cellContainer, "sheet", "s", "Sheet1", "Sheet for bare cell references")
	cellCmd.AddCommand(cellSetCmd)
	cellCmd.AddCommand(cellRmCmd)
	cellCmd.AddCommand(cellShowCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(cellCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadWorkspace resolves the workspace directory, loads its configuration
// and points category logging at it.
func loadWorkspace() (string, *config.Config, error) {
	ws := workspace
	if ws == "" {
		var err error
		if ws, err = os.Getwd(); err != nil {
			return "", nil, fmt.Errorf("failed to get working directory: %w", err)
		}
	}
	ws, err := filepath.Abs(ws)
	if err != nil {
		return "", nil, err
	}

	cfg, err := config.Load(config.Path(ws))
	if err != nil {
		return "", nil, err
	}
	if err := cfg.Validate(); err != nil {
		return "", nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logsDir := filepath.Join(ws, ".cellscript", "logs")
	if err := logging.Configure(logsDir, cfg.Logging.ToLogging()); err != nil {
		logger.Warn("Category logging disabled", zap.Error(err))
	} else if logging.IsDebugMode() {
		logger.Debug("Category logs enabled", zap.String("dir", logsDir))
	}
	logging.Boot("cellscript starting in %s", ws)
	return ws, cfg, nil
}

// resolvePath makes path absolute relative to the workspace.
func resolvePath(ws, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(ws, path)
}
