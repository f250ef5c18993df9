// Package store handles SQLite persistence of the scene document and its
// undo log.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/exprparms/internal/host"
	"github.com/verte-zerg/exprparms/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrLocked is returned when writing a locked parameter.
var ErrLocked = errors.New("parameter is locked")

// ErrNotNumeric is returned when writing a number to a non-numeric parameter.
var ErrNotNumeric = errors.New("parameter is not numeric")

// Store wraps SQLite access for the scene. It implements host.Host.
type Store struct {
	db  *sql.DB
	now func() time.Time

	suppressed int
	groups     []*undoGroup
}

type undoGroup struct {
	id      string
	label   string
	entries []undoEntry
}

type undoEntry struct {
	parmID   int64
	oldValue float64
	newValue float64
}

var _ host.Host = (*Store)(nil)

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS nodes (
			path TEXT PRIMARY KEY,
			type TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS parms (
			id INTEGER PRIMARY KEY,
			node_path TEXT NOT NULL REFERENCES nodes(path) ON DELETE CASCADE,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			value REAL NOT NULL,
			locked INTEGER NOT NULL DEFAULT 0,
			description TEXT NOT NULL DEFAULT '',
			UNIQUE (node_path, name)
		);`,
		`CREATE TABLE IF NOT EXISTS undo_groups (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			created_at TEXT NOT NULL,
			undone INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS undo_entries (
			group_id TEXT NOT NULL REFERENCES undo_groups(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			parm_id INTEGER NOT NULL,
			old_value REAL NOT NULL,
			new_value REAL NOT NULL,
			PRIMARY KEY (group_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_undo_groups_created_at ON undo_groups(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Parm implements host.Resolver. path is "<node path>/<parm name>".
func (s *Store) Parm(ctx context.Context, path string) (host.Parm, error) {
	nodePath, name := splitParmPath(path)
	if nodePath == "" || name == "" {
		return nil, fmt.Errorf("parm %q: %w", path, host.ErrNotFound)
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, node_path, name, type, locked FROM parms WHERE node_path = ? AND name = ?`,
		nodePath, name)
	p, err := s.scanParm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("parm %q: %w", path, host.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Node implements host.Resolver.
func (s *Store) Node(ctx context.Context, path string) (host.Node, error) {
	path = cleanPath(path)
	var found string
	err := s.db.QueryRowContext(ctx, `SELECT path FROM nodes WHERE path = ?`, path).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("node %q: %w", path, host.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &Node{store: s, path: found}, nil
}

// ListParms returns the parameters under nodePath, or every parameter when
// nodePath is empty.
func (s *Store) ListParms(ctx context.Context, nodePath string) ([]model.ParmInfo, error) {
	nodePath = cleanPath(nodePath)
	rows, err := s.db.QueryContext(ctx,
		`SELECT node_path, name, type, value, locked, description FROM parms
		 WHERE (? = '' OR node_path = ?)
		 ORDER BY node_path ASC, id ASC`, nodePath, nodePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.ParmInfo
	for rows.Next() {
		var info model.ParmInfo
		var locked int
		if err := rows.Scan(&info.NodePath, &info.Name, &info.Type, &info.Value, &locked, &info.Description); err != nil {
			return nil, err
		}
		info.Locked = locked != 0
		info.Path = joinParmPath(info.NodePath, info.Name)
		result = append(result, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanParm(row rowScanner) (*Parm, error) {
	var p Parm
	var typ string
	var locked int
	if err := row.Scan(&p.id, &p.nodePath, &p.name, &typ, &locked); err != nil {
		return nil, err
	}
	p.store = s
	p.typ = host.ParmType(typ)
	p.locked = locked != 0
	return &p, nil
}

func (s *Store) parmValue(ctx context.Context, id int64) (float64, error) {
	var value float64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM parms WHERE id = ?`, id).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("parm %d: %w", id, host.ErrNotFound)
	}
	return value, err
}

func (s *Store) writeParm(ctx context.Context, p *Parm, value float64) error {
	if !p.typ.Numeric() {
		return fmt.Errorf("set %s: %w", p.Path(), ErrNotNumeric)
	}
	if p.locked {
		return fmt.Errorf("set %s: %w", p.Path(), ErrLocked)
	}
	if p.typ == host.ParmInt {
		value = math.Trunc(value)
	}
	old, err := s.parmValue(ctx, p.id)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE parms SET value = ? WHERE id = ?`, value, p.id); err != nil {
		return fmt.Errorf("set %s: %w", p.Path(), err)
	}
	return s.record(ctx, p, old, value)
}

// record adds a write to the undo log according to the open brackets.
func (s *Store) record(ctx context.Context, p *Parm, old, value float64) error {
	if s.suppressed > 0 {
		return nil
	}
	entry := undoEntry{parmID: p.id, oldValue: old, newValue: value}
	if len(s.groups) > 0 {
		g := s.groups[0]
		g.entries = append(g.entries, entry)
		return nil
	}
	g := &undoGroup{id: uuid.NewString(), label: "Set parameter " + p.Path(), entries: []undoEntry{entry}}
	return s.saveGroup(ctx, g)
}

// BeginSuppressed implements host.Undoer.
func (s *Store) BeginSuppressed() {
	s.suppressed++
}

// EndSuppressed implements host.Undoer.
func (s *Store) EndSuppressed() {
	if s.suppressed > 0 {
		s.suppressed--
	}
}

// BeginGroup implements host.Undoer. Nested groups fold into the outermost
// one.
func (s *Store) BeginGroup(label string) {
	s.groups = append(s.groups, &undoGroup{id: uuid.NewString(), label: label})
}

// EndGroup implements host.Undoer. Closing the outermost group persists it
// when it recorded at least one write.
func (s *Store) EndGroup(ctx context.Context) error {
	if len(s.groups) == 0 {
		return nil
	}
	g := s.groups[0]
	s.groups = s.groups[:len(s.groups)-1]
	if len(s.groups) > 0 || len(g.entries) == 0 {
		return nil
	}
	return s.saveGroup(ctx, g)
}

func (s *Store) saveGroup(ctx context.Context, g *undoGroup) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO undo_groups (id, label, created_at) VALUES (?, ?, ?)`,
		g.id, g.label, s.now().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("save undo group: %w", err)
	}
	for i, e := range g.entries {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO undo_entries (group_id, seq, parm_id, old_value, new_value) VALUES (?, ?, ?, ?, ?)`,
			g.id, i, e.parmID, e.oldValue, e.newValue); err != nil {
			return fmt.Errorf("save undo entry: %w", err)
		}
	}
	return tx.Commit()
}

// Undo reverts the most recent group that has not been undone yet. It
// returns the group, or false when there is nothing to undo.
func (s *Store) Undo(ctx context.Context) (model.UndoGroup, bool, error) {
	groups, err := s.ListUndo(ctx, 0)
	if err != nil {
		return model.UndoGroup{}, false, err
	}
	var target *model.UndoGroup
	for i := range groups {
		if !groups[i].Undone {
			target = &groups[i]
			break
		}
	}
	if target == nil {
		return model.UndoGroup{}, false, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.UndoGroup{}, false, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	rows, err := tx.QueryContext(ctx,
		`SELECT parm_id, old_value FROM undo_entries WHERE group_id = ? ORDER BY seq DESC`, target.ID)
	if err != nil {
		return model.UndoGroup{}, false, err
	}
	var restore []undoEntry
	for rows.Next() {
		var e undoEntry
		if err = rows.Scan(&e.parmID, &e.oldValue); err != nil {
			_ = rows.Close()
			return model.UndoGroup{}, false, err
		}
		restore = append(restore, e)
	}
	if err = rows.Err(); err != nil {
		_ = rows.Close()
		return model.UndoGroup{}, false, err
	}
	if err = rows.Close(); err != nil {
		return model.UndoGroup{}, false, err
	}

	for _, e := range restore {
		if _, err = tx.ExecContext(ctx, `UPDATE parms SET value = ? WHERE id = ?`, e.oldValue, e.parmID); err != nil {
			return model.UndoGroup{}, false, err
		}
	}
	if _, err = tx.ExecContext(ctx, `UPDATE undo_groups SET undone = 1 WHERE id = ?`, target.ID); err != nil {
		return model.UndoGroup{}, false, err
	}
	if err = tx.Commit(); err != nil {
		return model.UndoGroup{}, false, err
	}
	target.Undone = true
	return *target, true, nil
}

// ListUndo returns undo groups, newest first. limit <= 0 returns all.
func (s *Store) ListUndo(ctx context.Context, limit int) ([]model.UndoGroup, error) {
	query := `SELECT g.id, g.label, g.created_at, g.undone, COUNT(e.seq)
		FROM undo_groups g
		LEFT JOIN undo_entries e ON e.group_id = g.id
		GROUP BY g.id
		ORDER BY g.rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var groups []model.UndoGroup
	for rows.Next() {
		var g model.UndoGroup
		var createdAt string
		var undone int
		if err := rows.Scan(&g.ID, &g.Label, &createdAt, &undone, &g.Entries); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, err
		}
		g.CreatedAt = parsed
		g.Undone = undone != 0
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groups, nil
}

func cleanPath(path string) string {
	path = strings.TrimSpace(path)
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}

func splitParmPath(path string) (nodePath, name string) {
	path = cleanPath(path)
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return "", ""
	}
	return path[:i], path[i+1:]
}

func joinParmPath(nodePath, name string) string {
	if strings.HasSuffix(nodePath, "/") {
		return nodePath + name
	}
	return nodePath + "/" + name
}
