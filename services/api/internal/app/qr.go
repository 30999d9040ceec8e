package app

import (
	"context"
	"errors"
	"fmt"

	"arview/pkg/qrcode"
)

// QRImage is a rendered QR code ready to be served as a download.
type QRImage struct {
	Data        []byte
	ContentType string
	Filename    string
}

type QRPreview struct {
	DataURL string `json:"dataUrl"`
	ARURL   string `json:"arUrl"`
}

// ARURL is the public viewer link a QR code encodes.
func (a *App) ARURL(slug string) string {
	return a.frontendURL + "/ar/" + slug
}

// ItemQRCode renders the QR code for an owned item.
func (a *App) ItemQRCode(ctx context.Context, itemID, merchantID string, opts qrcode.Options) (QRImage, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return QRImage{}, qrOptionError(err)
	}
	item, err := a.ownedItem(itemID, merchantID)
	if err != nil {
		return QRImage{}, err
	}
	data, err := qrcode.Render(a.ARURL(item.Slug), opts)
	if err != nil {
		return QRImage{}, fmt.Errorf("render qr: %w", err)
	}
	return QRImage{
		Data:        data,
		ContentType: opts.Format.ContentType(),
		Filename:    fmt.Sprintf("%s-qr.%s", item.Slug, opts.Format),
	}, nil
}

// ItemQRPreview returns a PNG data URL at default options plus the link it encodes.
func (a *App) ItemQRPreview(ctx context.Context, itemID, merchantID string) (QRPreview, error) {
	item, err := a.ownedItem(itemID, merchantID)
	if err != nil {
		return QRPreview{}, err
	}
	arURL := a.ARURL(item.Slug)
	dataURL, err := qrcode.DataURL(arURL, qrcode.Options{})
	if err != nil {
		return QRPreview{}, fmt.Errorf("render qr preview: %w", err)
	}
	return QRPreview{DataURL: dataURL, ARURL: arURL}, nil
}

func qrOptionError(err error) error {
	switch {
	case errors.Is(err, qrcode.ErrInvalidFormat):
		return invalid("format", "must be one of png, svg")
	case errors.Is(err, qrcode.ErrInvalidSize):
		return invalid("size", "must be between %d and %d", qrcode.MinSize, qrcode.MaxSize)
	case errors.Is(err, qrcode.ErrInvalidLevel):
		return invalid("errorCorrectionLevel", "must be one of L, M, Q, H")
	}
	return err
}
