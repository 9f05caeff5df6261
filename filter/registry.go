package filter

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/opd-ai/vidpipe/video"
)

// ApplyFunc transforms a frame in place using the instance's parameter
// bytes. A nil ApplyFunc marks a recognized filter type whose pixel
// operation is provided externally; the engine applies it as identity.
type ApplyFunc func(data *[DataLength]byte, frame *video.Frame) error

// Type describes one known filter type.
type Type struct {
	ID    uuid.UUID
	Name  string
	Apply ApplyFunc
}

// The permanent uuids of the known filter types. These identities are
// stable across versions and file formats.
var (
	TypeDeltaHistogram = uuid.MustParse("fc85a109-c57a-4317-994f-786652231773")
	TypeUniqueCount    = uuid.MustParse("badb0129-f48c-4253-a66f-b0ec94e225a0")
	TypeUnsharpMask    = uuid.MustParse("03847778-bb9c-4e8c-96d5-0c10335c4f34")
	TypeBlur           = uuid.MustParse("a5426f2e-b060-48a9-adf8-1646a2d3bd41")
	TypeDecimate       = uuid.MustParse("eb586eb4-2d9d-41b4-9e32-5cbcf0bbbf03")
	TypeDenoise        = uuid.MustParse("94adffac-be42-43ac-9839-9cc53a6d615c")
	TypeDenoiseNLM     = uuid.MustParse("e31d5ee3-f5df-4e7c-81b8-227fc39cbe76")
	TypeSharpen        = uuid.MustParse("1c25bbb1-dbf4-4a03-93a1-adf24b311070")
	TypeMedian         = uuid.MustParse("de60017c-afe5-4e5e-99ca-aca5756da0e8")
	TypeCrop           = uuid.MustParse("2448cf4a-112d-4d70-9fc1-b3e9176b6684")
	TypeFlip           = uuid.MustParse("80a3ac29-fcec-4ae0-ad9e-bbd8667cc680")
	TypeRotate         = uuid.MustParse("140c514d-a4b0-4882-abc6-b4e9e1ff4451")
)

// registry holds the known filter types in display order.
var registry = []Type{
	{ID: TypeBlur, Name: "Blur", Apply: applyBlur},
	{ID: TypeDeltaHistogram, Name: "Delta Histogram"},
	{ID: TypeUniqueCount, Name: "Unique Count"},
	{ID: TypeUnsharpMask, Name: "Unsharp Mask"},
	{ID: TypeDecimate, Name: "Decimate", Apply: applyDecimate},
	{ID: TypeDenoise, Name: "Denoise", Apply: applyDenoise},
	{ID: TypeDenoiseNLM, Name: "Denoise (NLM)"},
	{ID: TypeSharpen, Name: "Sharpen", Apply: applySharpen},
	{ID: TypeMedian, Name: "Median", Apply: applyMedian},
	{ID: TypeCrop, Name: "Crop"},
	{ID: TypeFlip, Name: "Flip", Apply: applyFlip},
	{ID: TypeRotate, Name: "Rotate"},
}

// legacyNames translates the display names used by legacy files into the
// permanent type uuids. Evaluated once at load; the table is fixed and
// finite.
var legacyNames = map[string]uuid.UUID{
	"Delta Histogram": TypeDeltaHistogram,
	"Unique Count":    TypeUniqueCount,
	"Unsharp Mask":    TypeUnsharpMask,
	"Blur":            TypeBlur,
	"Decimate":        TypeDecimate,
	"Denoise":         TypeDenoise,
	"Denoise (NLM)":   TypeDenoiseNLM,
	"Sharpen":         TypeSharpen,
	"Median":          TypeMedian,
	"Crop":            TypeCrop,
	"Flip":            TypeFlip,
	"Rotate":          TypeRotate,
}

// Types returns the known filter types in display order.
func Types() []Type {
	return append([]Type(nil), registry...)
}

// TypeForID returns the registered type with the given uuid.
func TypeForID(id uuid.UUID) (Type, bool) {
	for _, t := range registry {
		if t.ID == id {
			return t, true
		}
	}
	return Type{}, false
}

// TypeForName returns the registered type with the given display name.
func TypeForName(name string) (Type, bool) {
	for _, t := range registry {
		if t.Name == name {
			return t, true
		}
	}
	return Type{}, false
}

// ResolveTypeString converts a persisted filter identity string into a type
// uuid. The string may be a legacy display name or a uuid; any other value
// is an unresolvable filter identity and fails the load.
func ResolveTypeString(s string) (uuid.UUID, error) {
	if id, ok := legacyNames[s]; ok {
		return id, nil
	}

	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("unresolvable filter identity %q: %w", s, err)
	}
	if _, ok := TypeForID(id); !ok {
		return uuid.UUID{}, fmt.Errorf("unknown filter type uuid: %s", id)
	}
	return id, nil
}
