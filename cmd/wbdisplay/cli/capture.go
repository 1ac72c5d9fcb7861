package cli

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"golang.org/x/image/bmp"

	"github.com/frobware/go-wbdisplay"
)

// CaptureCmd commits one frame and saves the written output.
type CaptureCmd struct {
	OutputFlags

	Resolution wbdisplay.DisplayAttributes `arg:"" help:"Resolution as WIDTHxHEIGHT[@FPS]."`
	Path       string                      `name:"out" short:"O" help:"Destination BMP file (default: a file in the runtime captures directory)."`
}

// Run executes the capture command.
func (c *CaptureCmd) Run(cli *CLI, ctx context.Context) error {
	return cli.WithRuntime(ctx, func(ctx context.Context, rt *Runtime) error {
		if _, err := selectMode(ctx, rt, c.Resolution); err != nil {
			return err
		}

		bufs, free, err := rt.allocate(ctx, c.Resolution, 1)
		if err != nil {
			return err
		}
		defer free()

		buf := bufs[0]
		data, err := captureFrame(ctx, rt, buf)
		if err != nil {
			return err
		}

		img, err := DecodeXRGB8888(data, buf.Width, buf.Height, buf.Planes[0].Stride)
		if err != nil {
			return err
		}
		path := c.Path
		if path == "" {
			if err := os.MkdirAll(rt.Dirs.Captures(), 0o755); err != nil {
				return fmt.Errorf("create capture directory: %w", err)
			}
			path = filepath.Join(rt.Dirs.Captures(), fmt.Sprintf("%s-%s.bmp", rt.Display.Session(), c.Resolution))
		}
		if err := writeBMP(path, img); err != nil {
			return err
		}
		rt.Logger.Info("frame captured", "path", path, "resolution", c.Resolution.String())

		out, err := Format(CaptureView{
			Path:   path,
			Width:  buf.Width,
			Height: buf.Height,
			Bytes:  len(data),
		}, &c.OutputFlags)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	})
}

// captureFrame commits one frame into buf and returns its contents
// once the writeback has completed.
func captureFrame(ctx context.Context, rt *Runtime, buf wbdisplay.Buffer) ([]byte, error) {
	if err := rt.Display.Commit(ctx, buf); err != nil {
		return nil, err
	}
	if err := rt.Display.WaitRetire(ctx); err != nil {
		return nil, err
	}
	data, err := rt.Buffers.ReadBuffer(ctx, buf)
	if err != nil {
		return nil, fmt.Errorf("read output buffer: %w", err)
	}
	return data, nil
}

// DecodeXRGB8888 converts little-endian XRGB8888 rows into an image.
// The X byte is ignored.
func DecodeXRGB8888(data []byte, width, height, stride uint32) (*image.RGBA, error) {
	if stride < width*4 {
		return nil, fmt.Errorf("stride %d too small for width %d", stride, width)
	}
	if need := uint64(stride) * uint64(height); uint64(len(data)) < need {
		return nil, fmt.Errorf("buffer holds %d bytes, need %d", len(data), need)
	}

	img := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	for y := range height {
		row := data[y*stride:]
		for x := range width {
			px := binary.LittleEndian.Uint32(row[x*4:])
			img.SetRGBA(int(x), int(y), color.RGBA{
				R: uint8(px >> 16),
				G: uint8(px >> 8),
				B: uint8(px),
				A: 0xff,
			})
		}
	}
	return img, nil
}

func writeBMP(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := bmp.Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}
