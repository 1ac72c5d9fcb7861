package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-wbdisplay"
)

func TestParseDisplayAttributes(t *testing.T) {
	tests := []struct {
		in   string
		want wbdisplay.DisplayAttributes
	}{
		{"1920x1080@30", wbdisplay.DisplayAttributes{XPixels: 1920, YPixels: 1080, FPS: 30}},
		{"640x480", wbdisplay.DisplayAttributes{XPixels: 640, YPixels: 480, FPS: DefaultFPS}},
		{" 1280X720@60 ", wbdisplay.DisplayAttributes{XPixels: 1280, YPixels: 720, FPS: 60}},
		{"65535x1@1", wbdisplay.DisplayAttributes{XPixels: 65535, YPixels: 1, FPS: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDisplayAttributes(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDisplayAttributes_Invalid(t *testing.T) {
	for _, in := range []string{
		"",
		"1920",
		"0x1080",
		"1920x0",
		"65536x1080",
		"1920x1080@0",
		"1920x1080@",
		"axb",
		"-1x10",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseDisplayAttributes(in)
			assert.Error(t, err)
		})
	}
}

func TestOutputFlags(t *testing.T) {
	tests := []struct {
		output string
		format OutputFormat
		expr   string
	}{
		{"table", OutputFormatTable, ""},
		{"", OutputFormatTable, ""},
		{"json", OutputFormatJSON, ""},
		{"jsonpath={.modes[*].name}", OutputFormatJSONPath, "{.modes[*].name}"},
		{"jsonpath=", OutputFormatTable, ""},
	}
	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			f := OutputFlags{Output: tt.output}
			assert.Equal(t, tt.format, f.Format())
			if tt.format == OutputFormatJSONPath {
				assert.Equal(t, tt.expr, f.JSONPathExpr())
			}
		})
	}
}
