// Package qrcode renders QR codes for AR viewer links as PNG or SVG.
package qrcode

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	qr "github.com/skip2/go-qrcode"
)

type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

type Level string

const (
	LevelL Level = "L"
	LevelM Level = "M"
	LevelQ Level = "Q"
	LevelH Level = "H"
)

const (
	DefaultSize = 300
	MinSize     = 100
	MaxSize     = 1000
	// Margin is the quiet zone width in modules.
	Margin = 2
)

var (
	ErrInvalidFormat = errors.New("format must be png or svg")
	ErrInvalidLevel  = errors.New("errorCorrectionLevel must be one of L, M, Q, H")
	ErrInvalidSize   = fmt.Errorf("size must be between %d and %d", MinSize, MaxSize)
)

// Options controls rendering. Zero values fall back to png, DefaultSize and LevelM.
type Options struct {
	Format Format
	Size   int
	Level  Level
}

// Normalize applies defaults and validates the options.
func (o Options) Normalize() (Options, error) {
	if o.Format == "" {
		o.Format = FormatPNG
	}
	if o.Size == 0 {
		o.Size = DefaultSize
	}
	if o.Level == "" {
		o.Level = LevelM
	}
	switch o.Format {
	case FormatPNG, FormatSVG:
	default:
		return o, ErrInvalidFormat
	}
	if _, ok := recoveryLevel(o.Level); !ok {
		return o, ErrInvalidLevel
	}
	if o.Size < MinSize || o.Size > MaxSize {
		return o, ErrInvalidSize
	}
	return o, nil
}

// ContentType returns the MIME type of the rendered output.
func (f Format) ContentType() string {
	if f == FormatSVG {
		return "image/svg+xml"
	}
	return "image/png"
}

// Render encodes content as a QR code image.
func Render(content string, opts Options) ([]byte, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	modules, err := bitmap(content, opts.Level)
	if err != nil {
		return nil, err
	}
	if opts.Format == FormatSVG {
		return renderSVG(modules, opts.Size), nil
	}
	return renderPNG(modules, opts.Size)
}

// DataURL renders a PNG and wraps it as a base64 data URL.
func DataURL(content string, opts Options) (string, error) {
	opts.Format = FormatPNG
	data, err := Render(content, opts)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

func recoveryLevel(l Level) (qr.RecoveryLevel, bool) {
	switch l {
	case LevelL:
		return qr.Low, true
	case LevelM:
		return qr.Medium, true
	case LevelQ:
		return qr.High, true
	case LevelH:
		return qr.Highest, true
	}
	return 0, false
}

func bitmap(content string, level Level) ([][]bool, error) {
	rl, _ := recoveryLevel(level)
	code, err := qr.New(content, rl)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	code.DisableBorder = true
	return code.Bitmap(), nil
}

// moduleAt maps an output pixel to a module, accounting for the margin.
func moduleAt(modules [][]bool, px, py, size int) bool {
	total := len(modules) + 2*Margin
	mx := px*total/size - Margin
	my := py*total/size - Margin
	if mx < 0 || my < 0 || mx >= len(modules) || my >= len(modules) {
		return false
	}
	return modules[my][mx]
}

func renderPNG(modules [][]bool, size int) ([]byte, error) {
	palette := color.Palette{color.White, color.Black}
	img := image.NewPaletted(image.Rect(0, 0, size, size), palette)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if moduleAt(modules, x, y, size) {
				img.SetColorIndex(x, y, 1)
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func renderSVG(modules [][]bool, size int) []byte {
	total := len(modules) + 2*Margin
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" shape-rendering="crispEdges">`, size, size, total, total)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="#ffffff"/>`, total, total)
	b.WriteString(`<path fill="#000000" d="`)
	for y, row := range modules {
		for x, dark := range row {
			if dark {
				fmt.Fprintf(&b, "M%d %dh1v1h-1z", x+Margin, y+Margin)
			}
		}
	}
	b.WriteString(`"/></svg>`)
	return []byte(b.String())
}
