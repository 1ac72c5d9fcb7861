package cli

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/frobware/go-wbdisplay"
)

// DefaultFPS is used when a resolution omits "@FPS".
const DefaultFPS = 60

// ParseDisplayAttributes parses "WIDTHxHEIGHT[@FPS]", for example
// "1920x1080@30".
func ParseDisplayAttributes(s string) (wbdisplay.DisplayAttributes, error) {
	s = strings.TrimSpace(s)
	size, fpsStr, hasFPS := strings.Cut(s, "@")
	wStr, hStr, ok := strings.Cut(strings.ToLower(size), "x")
	if !ok {
		return wbdisplay.DisplayAttributes{}, fmt.Errorf("invalid resolution %q: expected WIDTHxHEIGHT[@FPS]", s)
	}

	w, err := parseDimension("width", wStr)
	if err != nil {
		return wbdisplay.DisplayAttributes{}, fmt.Errorf("invalid resolution %q: %w", s, err)
	}
	h, err := parseDimension("height", hStr)
	if err != nil {
		return wbdisplay.DisplayAttributes{}, fmt.Errorf("invalid resolution %q: %w", s, err)
	}

	fps := uint32(DefaultFPS)
	if hasFPS {
		v, err := strconv.ParseUint(strings.TrimSpace(fpsStr), 10, 32)
		if err != nil || v == 0 {
			return wbdisplay.DisplayAttributes{}, fmt.Errorf("invalid resolution %q: fps must be a positive integer", s)
		}
		fps = uint32(v)
	}

	return wbdisplay.DisplayAttributes{XPixels: w, YPixels: h, FPS: fps}, nil
}

func parseDimension(name, s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%s %q must be an integer in [1,65535]", name, s)
	}
	if v == 0 {
		return 0, fmt.Errorf("%s must be positive", name)
	}
	return uint32(v), nil
}

// displayAttributesMapper creates a Kong mapper for DisplayAttributes.
func displayAttributesMapper() kong.MapperFunc {
	return func(ctx *kong.DecodeContext, target reflect.Value) error {
		var s string
		if err := ctx.Scan.PopValueInto("WxH[@FPS]", &s); err != nil {
			return err
		}
		attrs, err := ParseDisplayAttributes(s)
		if err != nil {
			return err
		}
		target.Set(reflect.ValueOf(attrs))
		return nil
	}
}
