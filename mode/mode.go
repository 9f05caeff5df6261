// Package mode maps raw capture resolutions to known video modes.
//
// A video mode is a distinct input resolution requiring its own calibration
// parameters. The package holds two cooperating structures: the AliasTable,
// which substitutes one resolution for another before lookup, and the
// ParameterStore, which holds the per-resolution video and color calibration
// records.
//
// Both structures are mutated only on the consumer thread (by user action or
// by a settings load), so neither is internally locked.
package mode

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/vidpipe/video"
)

// VideoParams holds the video-geometry calibration of a mode.
type VideoParams struct {
	VerticalPosition   int
	HorizontalPosition int
	HorizontalScale    int
	Phase              int
	BlackLevel         int
}

// ColorParams holds the per-channel color calibration of a mode.
type ColorParams struct {
	OverallBrightness int
	OverallContrast   int
	RedBrightness     int
	RedContrast       int
	GreenBrightness   int
	GreenContrast     int
	BlueBrightness    int
	BlueContrast      int
}

// Params is the full calibration record of one video mode, keyed by its
// resolution.
type Params struct {
	Resolution video.Resolution
	Video      VideoParams
	Color      ColorParams
}

// DefaultParams returns a default-initialized calibration record for a
// resolution that has never been calibrated.
func DefaultParams(r video.Resolution) Params {
	return Params{
		Resolution: r,
		Video: VideoParams{
			HorizontalScale: int(r.Width),
		},
		Color: ColorParams{
			OverallBrightness: 32,
			OverallContrast:   128,
			RedBrightness:     128,
			RedContrast:       256,
			GreenBrightness:   128,
			GreenContrast:     256,
			BlueBrightness:    128,
			BlueContrast:      256,
		},
	}
}

// ParameterStore holds at most one calibration record per distinct
// resolution.
type ParameterStore struct {
	params map[video.Resolution]Params
}

// NewParameterStore creates an empty parameter store.
func NewParameterStore() *ParameterStore {
	return &ParameterStore{
		params: make(map[video.Resolution]Params),
	}
}

// Lookup returns the calibration record for the given resolution. A
// resolution that has no record is treated as newly seen: a
// default-initialized record is created, stored and returned, so the user
// can calibrate it going forward. This is not an error.
func (s *ParameterStore) Lookup(r video.Resolution) Params {
	if p, ok := s.params[r]; ok {
		return p
	}

	logrus.WithFields(logrus.Fields{
		"function":   "ParameterStore.Lookup",
		"resolution": r.String(),
	}).Debug("No mode parameters for resolution, creating defaults")

	p := DefaultParams(r)
	s.params[r] = p
	return p
}

// Has reports whether a record exists for the resolution without creating
// one.
func (s *ParameterStore) Has(r video.Resolution) bool {
	_, ok := s.params[r]
	return ok
}

// Set stores the calibration record for its resolution, replacing any
// previous record for the same key.
func (s *ParameterStore) Set(p Params) {
	s.params[p.Resolution] = p
}

// Replace discards all records and installs the given ones. Used when a
// settings load has been fully validated; the store is never left partially
// applied.
func (s *ParameterStore) Replace(params []Params) {
	s.params = make(map[video.Resolution]Params, len(params))
	for _, p := range params {
		s.params[p.Resolution] = p
	}

	logrus.WithFields(logrus.Fields{
		"function": "ParameterStore.Replace",
		"count":    len(params),
	}).Info("Mode parameter records replaced")
}

// Reset removes all records.
func (s *ParameterStore) Reset() {
	s.params = make(map[video.Resolution]Params)
}

// Count returns the number of stored records.
func (s *ParameterStore) Count() int {
	return len(s.params)
}

// All returns the stored records sorted by ascending pixel area. The
// ordering is a presentation and persistence concern but is reproduced here
// for deterministic output.
func (s *ParameterStore) All() []Params {
	out := make([]Params, 0, len(s.params))
	for _, p := range s.params {
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Resolution.Area() < out[j].Resolution.Area()
	})
	return out
}
