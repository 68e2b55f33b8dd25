package inpaint

import "image"

const (
	// HalfWindow is the half side of the square patch.
	HalfWindow = 4
	// WindowSize is the patch side length.
	WindowSize = 2*HalfWindow + 1
	// WindowArea is the number of pixels in one patch.
	WindowArea = WindowSize * WindowSize
)

// Params tunes a fill.
type Params struct {
	// MaxFilledPixels stops the fill once at least this many pixels have been
	// synthesized. Zero means run until the region is exhausted.
	MaxFilledPixels int

	// DataEpsilon is the floor of the data term, which keeps every priority
	// positive on flat image areas.
	DataEpsilon float64

	// Matcher finds source patches. Nil means DirectMatcher.
	Matcher Matcher

	// Progress, if set, is called after every round.
	Progress func(Progress)
}

// DefaultParams returns the default fill parameters.
func DefaultParams() Params {
	return Params{
		DataEpsilon: 0.001,
		Matcher:     DirectMatcher{},
	}
}

// Progress reports one completed round.
type Progress struct {
	Round     int
	Filled    int // pixels synthesized so far
	Remaining int // masked pixels still unknown
	Target    image.Point
	Source    image.Point
}
