// Package video defines the value types shared by the capture, filter and
// scaler stages: resolutions, pixel formats and frame buffers.
//
// These are plain value types with no behavior beyond comparison and size
// arithmetic; all pipeline logic lives in the packages that consume them.
package video

import "fmt"

// Resolution is a width/height pair in pixels.
//
// A zero width and height is used as a wildcard sentinel in several places
// (persisted filter-set activation encoding, mode-parameter block headers).
type Resolution struct {
	Width  uint32
	Height uint32
}

// IsZero reports whether the resolution is the unspecified/wildcard sentinel.
func (r Resolution) IsZero() bool {
	return r.Width == 0 && r.Height == 0
}

// Area returns the pixel area of the resolution. Used for the ascending
// pixel-area ordering of persisted mode parameters and aliases.
func (r Resolution) Area() uint64 {
	return uint64(r.Width) * uint64(r.Height)
}

// String formats the resolution as "WxH".
func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// PixelFormat identifies the in-memory layout of a frame's pixel data.
type PixelFormat uint8

const (
	// PixelFormatRGB888 is 32-bit BGRA (8 bits per channel, alpha unused).
	PixelFormatRGB888 PixelFormat = iota
	// PixelFormatRGB565 is 16-bit packed RGB.
	PixelFormatRGB565
	// PixelFormatRGB555 is 15-bit packed RGB with one unused bit.
	PixelFormatRGB555
)

// BytesPerPixel returns the per-pixel byte count of the format.
func (f PixelFormat) BytesPerPixel() uint32 {
	switch f {
	case PixelFormatRGB888:
		return 4
	case PixelFormatRGB565, PixelFormatRGB555:
		return 2
	}
	return 0
}

// String returns a human-readable format name.
func (f PixelFormat) String() string {
	switch f {
	case PixelFormatRGB888:
		return "RGB888"
	case PixelFormatRGB565:
		return "RGB565"
	case PixelFormatRGB555:
		return "RGB555"
	}
	return fmt.Sprintf("PixelFormat(%d)", uint8(f))
}

// Frame is a single captured or processed frame: a pixel buffer plus the
// resolution and format that describe it.
//
// Ownership of the pixel buffer follows the frame hand-off protocol of the
// capture package: while a frame is reserved by the consumer, the producer
// must not write to it.
type Frame struct {
	Resolution Resolution
	Format     PixelFormat
	Pixels     []byte
}

// ExpectedSize returns the byte length the pixel buffer should have for the
// frame's resolution and format.
func (f *Frame) ExpectedSize() int {
	return int(f.Resolution.Area() * uint64(f.Format.BytesPerPixel()))
}

// Validate checks that the frame's pixel buffer matches its declared
// resolution and format.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("frame cannot be nil")
	}
	if f.Resolution.IsZero() {
		return fmt.Errorf("invalid frame resolution: %s", f.Resolution)
	}
	if len(f.Pixels) < f.ExpectedSize() {
		return fmt.Errorf("pixel buffer too small: got %d bytes, expected %d",
			len(f.Pixels), f.ExpectedSize())
	}
	return nil
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	return &Frame{
		Resolution: f.Resolution,
		Format:     f.Format,
		Pixels:     append([]byte(nil), f.Pixels...),
	}
}

// Signal describes the video signal currently reported by capture hardware.
type Signal struct {
	Resolution  Resolution
	RefreshRate uint32
	ColorDepth  uint32
	Interlaced  bool
}
