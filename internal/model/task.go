package model

import "github.com/google/uuid"

// CompressionJob is one processing attempt sequence for a single source file.
// It lives only for the duration of the attempts and is never shared.
type CompressionJob struct {
	ID         uuid.UUID `json:"id"`
	Source     string    `json:"source"`
	Output     string    `json:"output"`
	Scratch    string    `json:"scratch"`
	MaxBytes   int64     `json:"max_bytes"`
	MaxWidth   int       `json:"max_width"`
	MaxHeight  int       `json:"max_height"`
	AtomicSave bool      `json:"atomic_save"`
}
