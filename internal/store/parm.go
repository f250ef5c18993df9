package store

import (
	"context"

	"github.com/verte-zerg/exprparms/internal/host"
)

// Parm is a parameter row. It implements host.Parm.
type Parm struct {
	store    *Store
	id       int64
	nodePath string
	name     string
	typ      host.ParmType
	locked   bool
}

var _ host.Parm = (*Parm)(nil)

// Path implements host.Parm.
func (p *Parm) Path() string { return joinParmPath(p.nodePath, p.name) }

// Name implements host.Parm.
func (p *Parm) Name() string { return p.name }

// NodePath implements host.Parm.
func (p *Parm) NodePath() string { return p.nodePath }

// Type implements host.Parm.
func (p *Parm) Type() host.ParmType { return p.typ }

// Locked implements host.Parm.
func (p *Parm) Locked() bool { return p.locked }

// Value implements host.Parm.
func (p *Parm) Value(ctx context.Context) (float64, error) {
	return p.store.parmValue(ctx, p.id)
}

// SetValue implements host.Parm. Int parameters truncate toward zero.
func (p *Parm) SetValue(ctx context.Context, value float64) error {
	return p.store.writeParm(ctx, p, value)
}

// Node is a node row. It implements host.Node.
type Node struct {
	store *Store
	path  string
}

var _ host.Node = (*Node)(nil)

// Path implements host.Node.
func (n *Node) Path() string { return n.path }

// Parms implements host.Node. Parameters come back in definition order.
func (n *Node) Parms(ctx context.Context) ([]host.Parm, error) {
	rows, err := n.store.db.QueryContext(ctx,
		`SELECT id, node_path, name, type, locked FROM parms WHERE node_path = ? ORDER BY id ASC`, n.path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var parms []host.Parm
	for rows.Next() {
		p, err := n.store.scanParm(rows)
		if err != nil {
			return nil, err
		}
		parms = append(parms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return parms, nil
}
