// Package model defines shared data structures.
package model

import "time"

// Config defines dialog settings.
type Config struct {
	Expression  string
	Step        float64
	CoarseStep  float64
	HistoryPath string
	ScenePath   string
}

// HistoryEntry is the expression and variable values last applied to a
// parameter name.
type HistoryEntry struct {
	Expression string             `json:"expression"`
	Variables  map[string]float64 `json:"variables"`
}

// ParmInfo describes a scene parameter for listings.
type ParmInfo struct {
	Path        string
	NodePath    string
	Name        string
	Type        string
	Value       float64
	Locked      bool
	Description string
}

// UndoGroup summarizes one entry of the undo log.
type UndoGroup struct {
	ID        string
	Label     string
	CreatedAt time.Time
	Entries   int
	Undone    bool
}

// TargetInfo describes a bound parameter in a dialog session.
type TargetInfo struct {
	Path    string
	Name    string
	Initial float64
	Current float64
	Source  bool
}
