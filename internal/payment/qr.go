package payment

import (
	"errors"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// ErrNoPaymentURL is returned when a transaction has no pay link to encode.
var ErrNoPaymentURL = errors.New("transaction has no payment url")

const (
	minQRSize     = 64
	maxQRSize     = 1024
	DefaultQRSize = 256
)

// QRCodePNG encodes a QRIS pay link as a square PNG of size pixels. Sizes
// outside [64, 1024] are clamped.
func QRCodePNG(url string, size int) ([]byte, error) {
	if url == "" {
		return nil, ErrNoPaymentURL
	}
	size = min(max(size, minQRSize), maxQRSize)
	png, err := qrcode.Encode(url, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
