// Package permission computes a user's effective access level per application
// area. Resolution walks an ordered provider chain (superuser, explicit
// per-user overrides, role defaults) and takes the first answer; results are cached
// with a TTL in an injected store and invalidated on any permission-affecting
// mutation.
package permission

import "fmt"

// Level is an ordinal access level: none < view < edit < admin. Higher levels
// imply every lower one.
type Level int

const (
	LevelNone Level = iota
	LevelView
	LevelEdit
	LevelAdmin
)

var levelNames = map[Level]string{
	LevelNone:  "none",
	LevelView:  "view",
	LevelEdit:  "edit",
	LevelAdmin: "admin",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "none"
}

// Satisfies reports whether l grants at least the required level.
func (l Level) Satisfies(required Level) bool {
	return l >= required
}

// ParseLevel maps a stored level string back to its ordinal. Unknown strings
// parse as none.
func ParseLevel(s string) Level {
	switch s {
	case "view":
		return LevelView
	case "edit":
		return LevelEdit
	case "admin":
		return LevelAdmin
	}
	return LevelNone
}

// PermissionError is returned when a required level is not met. It names the
// app and the level so the boundary can render an actionable denial.
type PermissionError struct {
	App      string
	Required Level
	Actual   Level
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s requires %s access (have %s)", e.App, e.Required, e.Actual)
}
