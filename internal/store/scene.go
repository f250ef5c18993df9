package store

import (
	"context"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/exprparms/internal/host"
)

// Scene is the TOML scene description accepted by Import.
type Scene struct {
	Nodes []SceneNode `toml:"node"`
}

// SceneNode describes a node and its parameters.
type SceneNode struct {
	Path  string      `toml:"path"`
	Type  string      `toml:"type"`
	Parms []SceneParm `toml:"parm"`
}

// SceneParm describes a parameter.
type SceneParm struct {
	Name        string  `toml:"name"`
	Type        string  `toml:"type"`
	Value       float64 `toml:"value"`
	Locked      bool    `toml:"locked"`
	Description string  `toml:"description"`
}

// LoadScene decodes a TOML scene file.
func LoadScene(path string) (Scene, error) {
	if _, err := os.Stat(path); err != nil {
		return Scene{}, fmt.Errorf("failed to stat scene: %w", err)
	}
	var scene Scene
	if _, err := toml.DecodeFile(path, &scene); err != nil {
		return Scene{}, fmt.Errorf("failed to decode scene: %w", err)
	}
	if err := scene.validate(); err != nil {
		return Scene{}, err
	}
	return scene, nil
}

func (sc Scene) validate() error {
	for _, n := range sc.Nodes {
		if cleanPath(n.Path) == "" || n.Path[0] != '/' {
			return fmt.Errorf("node path %q must be absolute", n.Path)
		}
		for _, p := range n.Parms {
			if p.Name == "" {
				return fmt.Errorf("node %s: parameter without a name", n.Path)
			}
			typ := host.ParmType(p.Type)
			if p.Type == "" {
				typ = host.ParmFloat
			}
			if !typ.Valid() {
				return fmt.Errorf("parm %s/%s: unknown type %q", n.Path, p.Name, p.Type)
			}
		}
	}
	return nil
}

// Import upserts the nodes and parameters of scene. Imported values are not
// recorded on the undo log.
func (s *Store) Import(ctx context.Context, scene Scene) (err error) {
	if err := scene.validate(); err != nil {
		return err
	}
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

	for _, n := range scene.Nodes {
		nodePath := cleanPath(n.Path)
		nodeType := n.Type
		if nodeType == "" {
			nodeType = "null"
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO nodes (path, type) VALUES (?, ?)
			 ON CONFLICT(path) DO UPDATE SET type = excluded.type`,
			nodePath, nodeType); err != nil {
			return fmt.Errorf("import node %s: %w", nodePath, err)
		}
		for _, p := range n.Parms {
			typ := p.Type
			if typ == "" {
				typ = string(host.ParmFloat)
			}
			locked := 0
			if p.Locked {
				locked = 1
			}
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO parms (node_path, name, type, value, locked, description) VALUES (?, ?, ?, ?, ?, ?)
				 ON CONFLICT(node_path, name) DO UPDATE SET
					type = excluded.type, value = excluded.value,
					locked = excluded.locked, description = excluded.description`,
				nodePath, p.Name, typ, p.Value, locked, p.Description); err != nil {
				return fmt.Errorf("import parm %s/%s: %w", nodePath, p.Name, err)
			}
		}
	}
	return tx.Commit()
}

// SetLocked changes the lock flag of a parameter.
func (s *Store) SetLocked(ctx context.Context, path string, locked bool) error {
	nodePath, name := splitParmPath(path)
	flag := 0
	if locked {
		flag = 1
	}
	res, err := s.db.ExecContext(ctx, `UPDATE parms SET locked = ? WHERE node_path = ? AND name = ?`, flag, nodePath, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("parm %q: %w", path, host.ErrNotFound)
	}
	return nil
}
