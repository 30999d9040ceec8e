package qrcode

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"testing"
)

const link = "http://localhost:3000/ar/red-chair"

func TestRenderPNGHasRequestedSize(t *testing.T) {
	data, err := Render(link, Options{Size: 240})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 240 || b.Dy() != 240 {
		t.Fatalf("size = %dx%d, want 240x240", b.Dx(), b.Dy())
	}
	// Quiet zone corner must be white.
	r, g, bl, _ := img.At(0, 0).RGBA()
	if r != 0xffff || g != 0xffff || bl != 0xffff {
		t.Fatalf("expected white margin at origin")
	}
}

func TestRenderSVG(t *testing.T) {
	data, err := Render(link, Options{Format: FormatSVG, Level: LevelH})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	svg := string(data)
	if !strings.HasPrefix(svg, "<svg") || !strings.HasSuffix(svg, "</svg>") {
		t.Fatalf("unexpected svg envelope: %.60s", svg)
	}
	if !strings.Contains(svg, `width="300"`) {
		t.Fatalf("expected default size 300 in svg")
	}
	if !strings.Contains(svg, "h1v1h-1z") {
		t.Fatalf("expected dark modules in svg path")
	}
}

func TestHigherLevelProducesDenserCode(t *testing.T) {
	low, err := bitmap(link, LevelL)
	if err != nil {
		t.Fatalf("bitmap L: %v", err)
	}
	high, err := bitmap(link, LevelH)
	if err != nil {
		t.Fatalf("bitmap H: %v", err)
	}
	if len(high) < len(low) {
		t.Fatalf("expected H (%d) to use at least as many modules as L (%d)", len(high), len(low))
	}
}

func TestNormalize(t *testing.T) {
	opts, err := Options{}.Normalize()
	if err != nil {
		t.Fatalf("normalize defaults: %v", err)
	}
	if opts.Format != FormatPNG || opts.Size != DefaultSize || opts.Level != LevelM {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
	bad := []struct {
		opts Options
		want error
	}{
		{Options{Format: "gif"}, ErrInvalidFormat},
		{Options{Size: 99}, ErrInvalidSize},
		{Options{Size: 1001}, ErrInvalidSize},
		{Options{Level: "X"}, ErrInvalidLevel},
	}
	for _, tc := range bad {
		if _, err := tc.opts.Normalize(); err != tc.want {
			t.Fatalf("Normalize(%+v) err = %v, want %v", tc.opts, err, tc.want)
		}
	}
}

func TestDataURL(t *testing.T) {
	url, err := DataURL(link, Options{Format: FormatSVG})
	if err != nil {
		t.Fatalf("data url: %v", err)
	}
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(url, prefix) {
		t.Fatalf("unexpected data url prefix: %.40s", url)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, prefix))
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(raw)); err != nil {
		t.Fatalf("decode png: %v", err)
	}
}

func TestContentType(t *testing.T) {
	if FormatPNG.ContentType() != "image/png" || FormatSVG.ContentType() != "image/svg+xml" {
		t.Fatalf("unexpected content types")
	}
}
