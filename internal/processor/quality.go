package processor

import (
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
)

// SearchMode selects how QualitySearch walks the quality grid.
type SearchMode string

const (
	Linear SearchMode = "linear" // probe from Initial downwards, stop at the first fit
	Bisect SearchMode = "bisect" // bisect the same grid, assuming size is monotone in quality
)

// QualitySearch finds the highest JPEG quality whose encoding fits a byte budget.
//
// The grid is Initial, Initial-Step, ... down to Floor. When no level fits, Floor
// is returned even though it may still exceed the budget.
type QualitySearch struct {
	Initial int
	Floor   int
	Step    int
	Mode    SearchMode
}

// DefaultQualitySearch returns the 95..30 step 5 linear search.
func DefaultQualitySearch() QualitySearch {
	return QualitySearch{Initial: 95, Floor: 30, Step: 5, Mode: Linear}
}

// Find encodes img to scratchPath at candidate qualities and returns the chosen one.
// scratchPath never outlives the call.
func (s QualitySearch) Find(img image.Image, maxBytes int64, scratchPath string) (int, error) {
	defer removeIfExists(scratchPath)

	levels := s.levels()
	fits := func(q int) (bool, error) {
		size, err := probe(img, q, scratchPath)
		if err != nil {
			return false, err
		}
		return size <= maxBytes, nil
	}

	if s.Mode == Bisect {
		return s.bisect(levels, fits)
	}

	for _, q := range levels {
		ok, err := fits(q)
		if err != nil {
			return 0, err
		}
		if ok {
			return q, nil
		}
	}

	return s.Floor, nil
}

func (s QualitySearch) bisect(levels []int, fits func(int) (bool, error)) (int, error) {
	// levels is descending, so "fits" flips from false to true at most once.
	lo, hi := 0, len(levels)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		ok, err := fits(levels[mid])
		if err != nil {
			return 0, err
		}
		if ok {
			hi = mid
		} else {
			lo = mid + 1
		}
	}

	if lo == len(levels) {
		return s.Floor, nil
	}
	return levels[lo], nil
}

func (s QualitySearch) levels() []int {
	step := s.Step
	if step < 1 {
		step = 1
	}

	var levels []int
	for q := s.Initial; q >= s.Floor; q -= step {
		levels = append(levels, q)
	}
	return levels
}

// probe writes one trial encoding and returns its size on disk.
func probe(img image.Image, quality int, path string) (int64, error) {
	defer removeIfExists(path)

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create scratch: %w", err)
	}

	if err := imaging.Encode(f, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		f.Close()
		return 0, fmt.Errorf("encode scratch at quality %d: %w", quality, err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close scratch: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat scratch: %w", err)
	}

	return info.Size(), nil
}

func removeIfExists(path string) {
	_ = os.Remove(path) // a missing file is the desired state
}
