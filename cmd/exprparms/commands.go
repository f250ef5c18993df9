package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/exprparms/internal/expr"
	"github.com/verte-zerg/exprparms/internal/history"
	"github.com/verte-zerg/exprparms/internal/model"
	"github.com/verte-zerg/exprparms/internal/session"
	"github.com/verte-zerg/exprparms/internal/store"
)

var (
	applyExpr  string
	applyVars  []string
	applyNodes []string

	undoList bool
)

var varNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func newApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply [parm-path...]",
		Short: "Apply an expression without the dialog",
		RunE:  runApplyCmd,
	}
	cmd.Flags().StringVar(&applyExpr, "expr", "", "expression (default: the parameter's history, then the configured expression)")
	cmd.Flags().StringArrayVar(&applyVars, "var", nil, "variable value as name=value (repeatable)")
	cmd.Flags().StringSliceVar(&applyNodes, "node", nil, "bind parameters of a node")
	return cmd
}

func runApplyCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	values, err := parseVars(applyVars)
	if err != nil {
		return err
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
	parms, err := collectParms(ctx, st, args, applyNodes)
	if err != nil {
		return err
	}
	if len(parms) == 0 {
		return fmt.Errorf("no parameters to apply to")
	}
	s, err := session.New(ctx, st, history.Open(cfg.HistoryPath), session.Options{
		Expression: cfg.Expression,
		Parms:      parms,
	})
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	if bound, err := s.Targets(ctx); err != nil {
		return fmt.Errorf("failed to read parameters: %w", err)
	} else if len(bound) == 0 {
		return fmt.Errorf("no eligible parameters (locked or not numeric)")
	}

	if err := prepareSession(ctx, s, cmd.Flags().Changed("expr"), applyExpr, values); err != nil {
		if cerr := s.Cancel(ctx); cerr != nil {
			logErrf("failed to restore parameters: %v\n", cerr)
		}
		return err
	}
	if err := s.Accept(ctx); err != nil {
		if cerr := s.Cancel(ctx); cerr != nil {
			logErrf("failed to restore parameters: %v\n", cerr)
		}
		if session.IsEvalError(err) {
			return errors.New(s.Status().Text)
		}
		return fmt.Errorf("failed to apply: %w", err)
	}

	targets, err := s.Targets(ctx)
	if err != nil {
		return fmt.Errorf("failed to read parameters: %w", err)
	}
	return writeTargets(cmd.OutOrStdout(), targets)
}

// prepareSession sets the expression and variable values of a headless run.
// Evaluation failures of intermediate states are ignored; Accept reports
// the final one.
func prepareSession(ctx context.Context, s *session.Session, exprSet bool, text string, values map[string]float64) error {
	if exprSet {
		if err := s.SetExpression(ctx, text); err != nil && !session.IsEvalError(err) {
			return err
		}
	}
	if err := s.Show(ctx); err != nil && !session.IsEvalError(err) {
		return err
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.SetVariable(ctx, name, values[name]); err != nil && !session.IsEvalError(err) {
			return fmt.Errorf("--var %s: %w", name, err)
		}
	}
	return nil
}

// parseVars parses repeated name=value assignments.
func parseVars(items []string) (map[string]float64, error) {
	values := make(map[string]float64, len(items))
	for _, item := range items {
		name, raw, ok := strings.Cut(item, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var %q (expected name=value)", item)
		}
		if !varNamePattern.MatchString(name) {
			return nil, fmt.Errorf("invalid variable name %q", name)
		}
		if name == expr.ReservedName {
			return nil, fmt.Errorf("variable %q is reserved for the parameter value", name)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", name, err)
		}
		if math.IsInf(value, 0) || math.IsNaN(value) {
			return nil, fmt.Errorf("invalid value for %s: must be a finite number", name)
		}
		values[name] = value
	}
	return values, nil
}

func writeTargets(w io.Writer, targets []model.TargetInfo) error {
	rows := make([][]string, 0, len(targets))
	for _, t := range targets {
		rows = append(rows, []string{t.Path, formatValue(t.Initial), formatValue(t.Current)})
	}
	return writeTable(w, []string{"Parameter", "Before", "After"}, rows, map[int]bool{1: true, 2: true})
}

func newUndoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Undo the last applied change",
		Args:  cobra.NoArgs,
		RunE:  runUndoCmd,
	}
	cmd.Flags().BoolVar(&undoList, "list", false, "list the undo history instead")
	return cmd
}

func runUndoCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
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
	if undoList {
		groups, err := st.ListUndo(ctx, 0)
		if err != nil {
			return fmt.Errorf("failed to list undo history: %w", err)
		}
		rows := make([][]string, 0, len(groups))
		for _, g := range groups {
			state := ""
			if g.Undone {
				state = "undone"
			}
			rows = append(rows, []string{g.CreatedAt.Local().Format("2006-01-02 15:04:05"), g.Label, strconv.Itoa(g.Entries), state})
		}
		return writeTable(cmd.OutOrStdout(), []string{"Time", "Label", "Parms", ""}, rows, map[int]bool{2: true})
	}

	group, ok, err := st.Undo(ctx)
	if err != nil {
		return fmt.Errorf("failed to undo: %w", err)
	}
	if !ok {
		logErrln("Nothing to undo")
		return nil
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Undid %q (%d parameter(s))\n", group.Label, group.Entries)
	return err
}

func newSceneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scene",
		Short: "Inspect and edit the scene",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "load <file.toml>",
		Short: "Import nodes and parameters from a TOML file",
		Args:  cobra.ExactArgs(1),
		RunE:  runSceneLoadCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "ls [node-path]",
		Short: "List parameters",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSceneListCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <parm-path> <value>",
		Short: "Set a parameter value (undoable)",
		Args:  cobra.ExactArgs(2),
		RunE:  runSceneSetCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "lock <parm-path>",
		Short: "Lock a parameter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSceneLockCmd(cmd, args[0], true)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "unlock <parm-path>",
		Short: "Unlock a parameter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSceneLockCmd(cmd, args[0], false)
		},
	})
	return cmd
}

func withStore(cmd *cobra.Command, fn func(context.Context, *store.Store) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
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
	return fn(context.Background(), st)
}

func runSceneLoadCmd(cmd *cobra.Command, args []string) error {
	scene, err := store.LoadScene(args[0])
	if err != nil {
		return err
	}
	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		if err := st.Import(ctx, scene); err != nil {
			return fmt.Errorf("failed to import scene: %w", err)
		}
		parms := 0
		for _, n := range scene.Nodes {
			parms += len(n.Parms)
		}
		logErrf("Imported %d node(s), %d parameter(s)\n", len(scene.Nodes), parms)
		return nil
	})
}

func runSceneListCmd(cmd *cobra.Command, args []string) error {
	nodePath := ""
	if len(args) == 1 {
		nodePath = args[0]
	}
	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		parms, err := st.ListParms(ctx, nodePath)
		if err != nil {
			return fmt.Errorf("failed to list parameters: %w", err)
		}
		rows := make([][]string, 0, len(parms))
		for _, p := range parms {
			locked := ""
			if p.Locked {
				locked = "locked"
			}
			rows = append(rows, []string{p.Path, p.Type, formatValue(p.Value), locked, p.Description})
		}
		return writeTable(cmd.OutOrStdout(), []string{"Parameter", "Type", "Value", "", "Description"}, rows, map[int]bool{2: true})
	})
}

func runSceneSetCmd(cmd *cobra.Command, args []string) error {
	value, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid value %q: %w", args[1], err)
	}
	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		p, err := st.Parm(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", args[0], err)
		}
		return p.SetValue(ctx, value)
	})
}

func runSceneLockCmd(cmd *cobra.Command, path string, locked bool) error {
	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		return st.SetLocked(ctx, path, locked)
	})
}

func newPresetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List expression presets",
		Args:  cobra.NoArgs,
		RunE:  runPresetsCmd,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <expression>",
		Short: "Save an expression preset",
		Args:  cobra.ExactArgs(1),
		RunE:  runPresetsAddCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rm <expression>",
		Short: "Remove an expression preset",
		Args:  cobra.ExactArgs(1),
		RunE:  runPresetsRemoveCmd,
	})
	return cmd
}

func openHistory(cmd *cobra.Command) (*history.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return history.Open(cfg.HistoryPath), nil
}

func runPresetsCmd(cmd *cobra.Command, _ []string) error {
	hist, err := openHistory(cmd)
	if err != nil {
		return err
	}
	for _, preset := range hist.Presets() {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), preset); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func runPresetsAddCmd(cmd *cobra.Command, args []string) error {
	text := args[0]
	if !expr.Valid(text) {
		return fmt.Errorf("preset contains invalid characters: %q", text)
	}
	if _, err := expr.Compile(text); err != nil {
		var evalErr *expr.Error
		if errors.As(err, &evalErr) {
			return fmt.Errorf("invalid preset: %s", evalErr.Marked(text))
		}
		return err
	}
	hist, err := openHistory(cmd)
	if err != nil {
		return err
	}
	if !hist.AddPreset(text) {
		logErrf("Preset %q already exists\n", text)
	}
	return nil
}

func runPresetsRemoveCmd(cmd *cobra.Command, args []string) error {
	hist, err := openHistory(cmd)
	if err != nil {
		return err
	}
	if !hist.RemovePreset(args[0]) {
		return fmt.Errorf("preset %q not found", args[0])
	}
	return nil
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [parm-name]",
		Short: "Show the last expression applied per parameter name",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHistoryCmd,
	}
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	hist, err := openHistory(cmd)
	if err != nil {
		return err
	}
	names := hist.HistoryNames()
	if len(args) == 1 {
		if _, ok := hist.History(args[0]); !ok {
			return fmt.Errorf("no history for %q", args[0])
		}
		names = []string{args[0]}
	}
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		entry, _ := hist.History(name)
		rows = append(rows, []string{name, entry.Expression, formatVariables(entry.Variables)})
	}
	return writeTable(cmd.OutOrStdout(), []string{"Parameter", "Expression", "Variables"}, rows, nil)
}

func formatVariables(values map[string]float64) string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+strconv.FormatFloat(values[name], 'g', -1, 64))
	}
	return strings.Join(parts, " ")
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
