package watch

import (
	"path/filepath"
	"strings"

	"github.com/aliskhannn/image-compressor/internal/model"
	"github.com/aliskhannn/image-compressor/internal/processor"
)

// Reason explains why an event was not dispatched.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonDirectory Reason = "directory"
	ReasonExtension Reason = "extension"
	ReasonArtifact  Reason = "artifact"
	ReasonScratch   Reason = "scratch"
	ReasonProcessed Reason = "processed"
	ReasonInFlight  Reason = "in_flight"
)

// ImageExtension is the only source extension that is compressed (case-insensitive).
const ImageExtension = ".jpg"

// Filter is the stateless part of event admission: it looks only at the event
// and the path's name, never at what was processed before.
type Filter struct {
	Suffix string // artifact suffix, e.g. "_compressed"
}

// Check reports whether ev may be dispatched and, if not, why.
// Our own outputs (artifacts and quality-search probes) are always rejected.
func (f Filter) Check(ev model.ChangeEvent) (Reason, bool) {
	if ev.IsDir {
		return ReasonDirectory, false
	}

	lower := strings.ToLower(ev.Path)
	if filepath.Ext(lower) != ImageExtension {
		return ReasonExtension, false
	}
	if strings.HasSuffix(lower, ImageExtension+processor.ScratchSuffix) {
		return ReasonScratch, false
	}

	suffix := f.Suffix
	if suffix == "" {
		suffix = processor.DefaultSuffix
	}
	stem := strings.TrimSuffix(filepath.Base(lower), ImageExtension)
	if strings.HasSuffix(stem, strings.ToLower(suffix)) {
		return ReasonArtifact, false
	}

	return ReasonNone, true
}
