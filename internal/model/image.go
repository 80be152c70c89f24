package model

import (
	"time"

	"github.com/google/uuid"
)

// ChangeKind is the kind of filesystem change that produced a ChangeEvent.
type ChangeKind string

const (
	Created  ChangeKind = "created"
	Modified ChangeKind = "modified"
	MovedIn  ChangeKind = "moved_in" // fsnotify reports moves into a watched directory as Create
)

// ChangeEvent is a single filesystem notification for a watch root.
type ChangeEvent struct {
	Path  string     `json:"path"`
	Kind  ChangeKind `json:"kind"`
	IsDir bool       `json:"is_dir"`
}

// Result describes a successfully written compressed artifact.
type Result struct {
	JobID    uuid.UUID     `json:"job_id"`
	Source   string        `json:"source"`
	Output   string        `json:"output"`
	Object   string        `json:"object,omitempty"` // Object name of the mirrored copy, if any
	Quality  int           `json:"quality"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	Bytes    int64         `json:"bytes"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
	Done     time.Time     `json:"done_at"`
}
