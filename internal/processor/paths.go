package processor

import (
	"path/filepath"
	"strings"
)

const (
	// DefaultSuffix is inserted before the extension of a source to name its artifact.
	DefaultSuffix = "_compressed"
	// ScratchSuffix is appended to a source path to name quality-search probes.
	ScratchSuffix = ".temp.jpg"
	// partialSuffix is appended to an artifact path while it is written atomically.
	partialSuffix = ".part"
)

// ArtifactPath returns <path-without-ext><suffix><ext>.
func ArtifactPath(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}

// ScratchPath returns the probe file used while searching quality for path.
func ScratchPath(path string) string {
	return path + ScratchSuffix
}
