// Package scaler selects scaling parameters and resizes output frames.
//
// The pipeline core only chooses which named scaler to apply and what the
// output resolution is; the resampling functions here are deliberately
// simple BGRA resamplers (nearest neighbour and bilinear).
package scaler

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/vidpipe/video"
)

// Func resizes a BGRA frame to the target resolution, returning a new
// frame. The source frame is not modified.
type Func func(src *video.Frame, target video.Resolution) (*video.Frame, error)

// Scaler is a named resampling strategy. Filter sets refer to scalers by
// name in their persisted form.
type Scaler struct {
	Name  string
	Scale Func
}

// registry holds the known scalers; the first entry is the default.
var registry = []Scaler{
	{Name: "Nearest", Scale: scaleNearest},
	{Name: "Linear", Scale: scaleLinear},
}

// Default returns the default scaler.
func Default() Scaler {
	return registry[0]
}

// All returns the known scalers in display order.
func All() []Scaler {
	return append([]Scaler(nil), registry...)
}

// ForName returns the scaler with the given name. An unknown name falls
// back to the default scaler with a warning, so a settings file written by
// a build with more scalers still loads.
func ForName(name string) Scaler {
	for _, s := range registry {
		if s.Name == name {
			return s
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "ForName",
		"name":     name,
		"fallback": Default().Name,
	}).Warn("Unknown scaler name, falling back to default")

	return Default()
}

// validate checks the scaling inputs shared by all resamplers.
func validate(src *video.Frame, target video.Resolution) error {
	if err := src.Validate(); err != nil {
		return fmt.Errorf("invalid source frame: %w", err)
	}
	if src.Format != video.PixelFormatRGB888 {
		return fmt.Errorf("unsupported pixel format for scaling: %s", src.Format)
	}
	if target.IsZero() {
		return fmt.Errorf("invalid target resolution: %s", target)
	}
	return nil
}

// scaleNearest resizes with nearest-neighbour sampling.
func scaleNearest(src *video.Frame, target video.Resolution) (*video.Frame, error) {
	if err := validate(src, target); err != nil {
		return nil, err
	}
	if src.Resolution == target {
		return src.Clone(), nil
	}

	srcW := int(src.Resolution.Width)
	srcH := int(src.Resolution.Height)
	dstW := int(target.Width)
	dstH := int(target.Height)

	dst := &video.Frame{
		Resolution: target,
		Format:     src.Format,
		Pixels:     make([]byte, dstW*dstH*4),
	}

	for y := 0; y < dstH; y++ {
		sy := y * srcH / dstH
		for x := 0; x < dstW; x++ {
			sx := x * srcW / dstW
			si := (sy*srcW + sx) * 4
			di := (y*dstW + x) * 4
			copy(dst.Pixels[di:di+4], src.Pixels[si:si+4])
		}
	}

	return dst, nil
}

// scaleLinear resizes with bilinear interpolation over the color channels.
func scaleLinear(src *video.Frame, target video.Resolution) (*video.Frame, error) {
	if err := validate(src, target); err != nil {
		return nil, err
	}
	if src.Resolution == target {
		return src.Clone(), nil
	}

	srcW := int(src.Resolution.Width)
	srcH := int(src.Resolution.Height)
	dstW := int(target.Width)
	dstH := int(target.Height)

	dst := &video.Frame{
		Resolution: target,
		Format:     src.Format,
		Pixels:     make([]byte, dstW*dstH*4),
	}

	// Fixed-point 16.16 source step per destination pixel.
	xStep := (srcW << 16) / dstW
	yStep := (srcH << 16) / dstH

	for y := 0; y < dstH; y++ {
		sy := y * yStep
		y0 := sy >> 16
		fy := sy & 0xffff
		y1 := y0 + 1
		if y1 >= srcH {
			y1 = srcH - 1
		}

		for x := 0; x < dstW; x++ {
			sx := x * xStep
			x0 := sx >> 16
			fx := sx & 0xffff
			x1 := x0 + 1
			if x1 >= srcW {
				x1 = srcW - 1
			}

			i00 := (y0*srcW + x0) * 4
			i10 := (y0*srcW + x1) * 4
			i01 := (y1*srcW + x0) * 4
			i11 := (y1*srcW + x1) * 4
			di := (y*dstW + x) * 4

			for c := 0; c < 4; c++ {
				top := int(src.Pixels[i00+c]) + ((int(src.Pixels[i10+c])-int(src.Pixels[i00+c]))*fx)>>16
				bottom := int(src.Pixels[i01+c]) + ((int(src.Pixels[i11+c])-int(src.Pixels[i01+c]))*fx)>>16
				dst.Pixels[di+c] = byte(top + ((bottom-top)*fy)>>16)
			}
		}
	}

	return dst, nil
}
