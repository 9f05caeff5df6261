package filter

import (
	"fmt"
	"sort"

	"github.com/opd-ai/vidpipe/video"
)

// The built-in pixel operations work on 32-bit BGRA frames in place. Each
// reads its tuning values from the instance's leading parameter bytes; the
// rest of the blob is ignored.

// requireBGRA validates that a frame can be processed by the built-in
// operations.
func requireBGRA(frame *video.Frame) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	if frame.Format != video.PixelFormatRGB888 {
		return fmt.Errorf("unsupported pixel format for filtering: %s", frame.Format)
	}
	return nil
}

func clampByte(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// applyBlur is a box blur over the three color channels. Parameter byte 0
// is the kernel radius (0 is treated as 1).
func applyBlur(data *[DataLength]byte, frame *video.Frame) error {
	if err := requireBGRA(frame); err != nil {
		return err
	}

	radius := int(data[0])
	if radius == 0 {
		radius = 1
	}

	w := int(frame.Resolution.Width)
	h := int(frame.Resolution.Height)
	src := append([]byte(nil), frame.Pixels...)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum [3]int
			count := 0
			for ky := -radius; ky <= radius; ky++ {
				sy := y + ky
				if sy < 0 || sy >= h {
					continue
				}
				for kx := -radius; kx <= radius; kx++ {
					sx := x + kx
					if sx < 0 || sx >= w {
						continue
					}
					i := (sy*w + sx) * 4
					sum[0] += int(src[i])
					sum[1] += int(src[i+1])
					sum[2] += int(src[i+2])
					count++
				}
			}
			o := (y*w + x) * 4
			frame.Pixels[o] = byte(sum[0] / count)
			frame.Pixels[o+1] = byte(sum[1] / count)
			frame.Pixels[o+2] = byte(sum[2] / count)
		}
	}

	return nil
}

// applySharpen applies a fixed 3x3 sharpening kernel to the color channels.
func applySharpen(_ *[DataLength]byte, frame *video.Frame) error {
	if err := requireBGRA(frame); err != nil {
		return err
	}

	w := int(frame.Resolution.Width)
	h := int(frame.Resolution.Height)
	src := append([]byte(nil), frame.Pixels...)

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			o := (y*w + x) * 4
			for c := 0; c < 3; c++ {
				center := int(src[o+c]) * 5
				neighbors := int(src[((y-1)*w+x)*4+c]) +
					int(src[((y+1)*w+x)*4+c]) +
					int(src[(y*w+x-1)*4+c]) +
					int(src[(y*w+x+1)*4+c])
				frame.Pixels[o+c] = clampByte(center - neighbors)
			}
		}
	}

	return nil
}

// applyMedian replaces each pixel's color channels with the median of its
// 3x3 neighborhood.
func applyMedian(_ *[DataLength]byte, frame *video.Frame) error {
	if err := requireBGRA(frame); err != nil {
		return err
	}

	w := int(frame.Resolution.Width)
	h := int(frame.Resolution.Height)
	src := append([]byte(nil), frame.Pixels...)
	window := make([]byte, 0, 9)

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			o := (y*w + x) * 4
			for c := 0; c < 3; c++ {
				window = window[:0]
				for ky := -1; ky <= 1; ky++ {
					for kx := -1; kx <= 1; kx++ {
						window = append(window, src[((y+ky)*w+x+kx)*4+c])
					}
				}
				sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })
				frame.Pixels[o+c] = window[4]
			}
		}
	}

	return nil
}

// applyDenoise smooths pixels that differ from their 3x3 neighborhood mean
// by no more than the threshold in parameter byte 0, leaving stronger edges
// untouched.
func applyDenoise(data *[DataLength]byte, frame *video.Frame) error {
	if err := requireBGRA(frame); err != nil {
		return err
	}

	threshold := int(data[0])
	w := int(frame.Resolution.Width)
	h := int(frame.Resolution.Height)
	src := append([]byte(nil), frame.Pixels...)

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			o := (y*w + x) * 4
			for c := 0; c < 3; c++ {
				sum := 0
				for ky := -1; ky <= 1; ky++ {
					for kx := -1; kx <= 1; kx++ {
						sum += int(src[((y+ky)*w+x+kx)*4+c])
					}
				}
				mean := sum / 9
				diff := int(src[o+c]) - mean
				if diff < 0 {
					diff = -diff
				}
				if diff <= threshold {
					frame.Pixels[o+c] = byte(mean)
				}
			}
		}
	}

	return nil
}

// applyFlip mirrors the frame. Parameter byte 0 selects the axis:
// 0 = horizontal, 1 = vertical, 2 = both.
func applyFlip(data *[DataLength]byte, frame *video.Frame) error {
	if err := requireBGRA(frame); err != nil {
		return err
	}

	axis := data[0]
	w := int(frame.Resolution.Width)
	h := int(frame.Resolution.Height)
	src := append([]byte(nil), frame.Pixels...)

	for y := 0; y < h; y++ {
		sy := y
		if axis == 1 || axis == 2 {
			sy = h - 1 - y
		}
		for x := 0; x < w; x++ {
			sx := x
			if axis == 0 || axis == 2 {
				sx = w - 1 - x
			}
			copy(frame.Pixels[(y*w+x)*4:(y*w+x)*4+4], src[(sy*w+sx)*4:(sy*w+sx)*4+4])
		}
	}

	return nil
}

// applyDecimate averages the frame in square blocks, producing a blocky,
// reduced-detail image at the original resolution. Parameter byte 0 is the
// block size (0 and 1 are treated as 2).
func applyDecimate(data *[DataLength]byte, frame *video.Frame) error {
	if err := requireBGRA(frame); err != nil {
		return err
	}

	block := int(data[0])
	if block < 2 {
		block = 2
	}

	w := int(frame.Resolution.Width)
	h := int(frame.Resolution.Height)

	for by := 0; by < h; by += block {
		for bx := 0; bx < w; bx += block {
			var sum [3]int
			count := 0
			for y := by; y < by+block && y < h; y++ {
				for x := bx; x < bx+block && x < w; x++ {
					i := (y*w + x) * 4
					sum[0] += int(frame.Pixels[i])
					sum[1] += int(frame.Pixels[i+1])
					sum[2] += int(frame.Pixels[i+2])
					count++
				}
			}
			avg := [3]byte{
				byte(sum[0] / count),
				byte(sum[1] / count),
				byte(sum[2] / count),
			}
			for y := by; y < by+block && y < h; y++ {
				for x := bx; x < bx+block && x < w; x++ {
					i := (y*w + x) * 4
					frame.Pixels[i] = avg[0]
					frame.Pixels[i+1] = avg[1]
					frame.Pixels[i+2] = avg[2]
				}
			}
		}
	}

	return nil
}
