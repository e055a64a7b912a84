package types

import (
	"fmt"
	"path/filepath"
)

// ChangeKind is the kind of filesystem notification that produced a drop.
type ChangeKind int

const (
	Created ChangeKind = iota
	Renamed
)

func (k ChangeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Renamed:
		return "renamed"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// DropEvent is a single file arrival in the download directory.
type DropEvent struct {
	FullPath string     `json:"fullPath"`
	Name     string     `json:"name"`
	Kind     ChangeKind `json:"kind"`
}

// NewDropEvent builds a DropEvent whose Name is the base name of path.
func NewDropEvent(path string, kind ChangeKind) DropEvent {
	clean := filepath.Clean(path)
	return DropEvent{
		FullPath: clean,
		Name:     filepath.Base(clean),
		Kind:     kind,
	}
}
