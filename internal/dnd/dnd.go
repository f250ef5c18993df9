// Package dnd decodes drag-and-drop payloads that carry scene paths.
package dnd

import (
	"context"
	"errors"
	"strings"

	"github.com/verte-zerg/exprparms/internal/host"
)

// Payload formats. Both carry tab-separated absolute paths.
const (
	ParmPathMIME = "application/sidefx-houdini-parm.path"
	NodePathMIME = "application/sidefx-houdini-node.path"
)

// Payload maps a MIME type to its raw data.
type Payload map[string]string

// Accepts reports whether p carries parameter or node paths.
func Accepts(p Payload) bool {
	_, parms := p[ParmPathMIME]
	_, nodes := p[NodePathMIME]
	return parms || nodes
}

// SplitPaths splits tab-separated path data, dropping empty fields.
func SplitPaths(data string) []string {
	var paths []string
	for _, field := range strings.Split(data, "\t") {
		field = strings.TrimSpace(field)
		if field != "" {
			paths = append(paths, field)
		}
	}
	return paths
}

// Resolve turns a payload into parameters. Parameter paths resolve
// directly. Node paths contribute the node's parameter named sourceName, or
// every parameter of the node when sourceName is empty. Paths that do not
// resolve are skipped.
func Resolve(ctx context.Context, r host.Resolver, p Payload, sourceName string) ([]host.Parm, error) {
	var parms []host.Parm
	for _, path := range SplitPaths(p[ParmPathMIME]) {
		parm, err := r.Parm(ctx, path)
		if errors.Is(err, host.ErrNotFound) {
			continue
		}
		if err != nil {
			return parms, err
		}
		parms = append(parms, parm)
	}
	for _, path := range SplitPaths(p[NodePathMIME]) {
		nodeParms, err := nodeParms(ctx, r, path, sourceName)
		if err != nil {
			return parms, err
		}
		parms = append(parms, nodeParms...)
	}
	return parms, nil
}

// ResolvePaths resolves free-form paths, e.g. pasted text: each path is
// tried as a parameter first, then as a node.
func ResolvePaths(ctx context.Context, r host.Resolver, paths []string, sourceName string) ([]host.Parm, error) {
	var parms []host.Parm
	for _, path := range paths {
		parm, err := r.Parm(ctx, path)
		if err == nil {
			parms = append(parms, parm)
			continue
		}
		if !errors.Is(err, host.ErrNotFound) {
			return parms, err
		}
		nodeParms, err := nodeParms(ctx, r, path, sourceName)
		if err != nil {
			return parms, err
		}
		parms = append(parms, nodeParms...)
	}
	return parms, nil
}

// ParsePaths splits pasted text on tabs, newlines and commas.
func ParsePaths(text string) []string {
	replacer := strings.NewReplacer("\r\n", "\t", "\n", "\t", ",", "\t")
	return SplitPaths(replacer.Replace(text))
}

func nodeParms(ctx context.Context, r host.Resolver, path, sourceName string) ([]host.Parm, error) {
	node, err := r.Node(ctx, path)
	if errors.Is(err, host.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	all, err := node.Parms(ctx)
	if err != nil {
		return nil, err
	}
	if sourceName == "" {
		return all, nil
	}
	var matched []host.Parm
	for _, parm := range all {
		if parm.Name() == sourceName {
			matched = append(matched, parm)
		}
	}
	return matched, nil
}
