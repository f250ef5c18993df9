// Package main provides the CLI entrypoint for exprparms.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/exprparms/internal/config"
	"github.com/verte-zerg/exprparms/internal/dnd"
	"github.com/verte-zerg/exprparms/internal/expr"
	"github.com/verte-zerg/exprparms/internal/history"
	"github.com/verte-zerg/exprparms/internal/host"
	"github.com/verte-zerg/exprparms/internal/model"
	"github.com/verte-zerg/exprparms/internal/session"
	"github.com/verte-zerg/exprparms/internal/store"
	"github.com/verte-zerg/exprparms/internal/tui"
)

var (
	dialogExpr       string
	dialogStep       float64
	dialogCoarseStep float64
	dialogNodes      []string

	scenePath   string
	historyPath string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	defaults := config.Defaults()
	rootCmd := &cobra.Command{
		Use:           "exprparms [parm-path...]",
		Short:         "Apply an expression to a batch of parameters",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runDialogCmd,
	}

	rootCmd.PersistentFlags().StringVar(&scenePath, "scene", defaults.ScenePath, "scene database path")
	rootCmd.PersistentFlags().StringVar(&historyPath, "history", defaults.HistoryPath, "history and presets file")
	rootCmd.Flags().StringVar(&dialogExpr, "expr", defaults.Expression, "expression used when the parameter has no history")
	rootCmd.Flags().Float64Var(&dialogStep, "step", defaults.Step, "variable step for left/right")
	rootCmd.Flags().Float64Var(&dialogCoarseStep, "coarse-step", defaults.CoarseStep, "variable step for shift+left/right")
	rootCmd.Flags().StringSliceVar(&dialogNodes, "node", nil, "bind parameters of a node (matching the first parameter's name when one is given)")

	rootCmd.AddCommand(newApplyCmd())
	rootCmd.AddCommand(newUndoCmd())
	rootCmd.AddCommand(newSceneCmd())
	rootCmd.AddCommand(newPresetsCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// loadConfig merges the config file into flag values that were not set on
// the command line.
func loadConfig(cmd *cobra.Command) (model.Config, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return model.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "expr", &dialogExpr, fileCfg.Dialog.Expression)
	applyFloatConfig(cmd, "step", &dialogStep, fileCfg.Dialog.Step)
	applyFloatConfig(cmd, "coarse-step", &dialogCoarseStep, fileCfg.Dialog.CoarseStep)
	applyStringConfig(cmd, "scene", &scenePath, fileCfg.Storage.Scene)
	applyStringConfig(cmd, "history", &historyPath, fileCfg.Storage.History)

	cfg := model.Config{
		Expression:  dialogExpr,
		Step:        dialogStep,
		CoarseStep:  dialogCoarseStep,
		HistoryPath: historyPath,
		ScenePath:   scenePath,
	}
	if err := validateConfig(cfg); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

func runDialogCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("the dialog needs a terminal; use 'exprparms apply' for scripted edits")
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close scene: %v\n", cerr)
		}
	}()

	ctx := context.Background()
	parms, err := collectParms(ctx, st, args, dialogNodes)
	if err != nil {
		return err
	}
	s, err := session.New(ctx, st, history.Open(cfg.HistoryPath), session.Options{
		Expression: cfg.Expression,
		Parms:      parms,
	})
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	dialog := tui.NewModel(ctx, s, cfg)
	program := tea.NewProgram(dialog, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		if cerr := s.Cancel(ctx); cerr != nil {
			logErrf("failed to restore parameters: %v\n", cerr)
		}
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	switch s.State() {
	case session.Committed:
		logErrf("Applied %q to %d parameter(s)\n", s.Expression(), len(parms))
	case session.Cancelled:
		logErrln("Cancelled")
	}
	return nil
}

func openStore(cfg model.Config) (*store.Store, error) {
	st, err := store.Open(cfg.ScenePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open scene: %w", err)
	}
	return st, nil
}

// collectParms resolves parameter paths, then adds the parameters of each
// node. With at least one parameter path, node parameters are limited to the
// first parameter's name.
func collectParms(ctx context.Context, r host.Resolver, paths, nodes []string) ([]host.Parm, error) {
	parms := make([]host.Parm, 0, len(paths))
	for _, path := range paths {
		p, err := r.Parm(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		parms = append(parms, p)
	}
	if len(nodes) == 0 {
		return parms, nil
	}
	sourceName := ""
	if len(parms) > 0 {
		sourceName = parms[0].Name()
	}
	payload := dnd.Payload{dnd.NodePathMIME: strings.Join(nodes, "\t")}
	fromNodes, err := dnd.Resolve(ctx, r, payload, sourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve nodes: %w", err)
	}
	return append(parms, fromNodes...), nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	defaults := config.Defaults()
	return fmt.Sprintf(`# exprparms configuration
# Uncomment a value to enable it. CLI flags override config values.

[dialog]
# expression = %q     # Expression used when a parameter has no history
# step = %.2f            # Variable step for left/right
# coarse-step = %.1f      # Variable step for shift+left/right

[storage]
# history = %q
# scene = %q
`,
		defaults.Expression,
		defaults.Step,
		defaults.CoarseStep,
		defaults.HistoryPath,
		defaults.ScenePath,
	)
}

func validateConfig(cfg model.Config) error {
	if !expr.Valid(cfg.Expression) {
		return fmt.Errorf("--expr may only contain letters, digits, spaces and ()., /*-+_%%")
	}
	if cfg.Step <= 0 {
		return fmt.Errorf("--step must be > 0")
	}
	if cfg.CoarseStep <= 0 {
		return fmt.Errorf("--coarse-step must be > 0")
	}
	if cfg.ScenePath == "" {
		return fmt.Errorf("--scene must not be empty")
	}
	if cfg.HistoryPath == "" {
		return fmt.Errorf("--history must not be empty")
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
