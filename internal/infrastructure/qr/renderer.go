// Package qr renders payment QR payloads as PNG images.
package qr

import (
	"errors"
	"fmt"

	"github.com/skip2/go-qrcode"
)

const (
	MinSize = 64
	MaxSize = 2048
)

// ErrEmptyPayload is returned when there is nothing to encode
var ErrEmptyPayload = errors.New("qr payload is empty")

// Renderer encodes payloads with skip2/go-qrcode
type Renderer struct {
	level qrcode.RecoveryLevel
}

// NewRenderer creates a renderer using medium error correction
func NewRenderer() *Renderer {
	return &Renderer{level: qrcode.Medium}
}

// PNG returns a size x size PNG of payload
func (r *Renderer) PNG(payload string, size int) ([]byte, error) {
	if payload == "" {
		return nil, ErrEmptyPayload
	}
	if size < MinSize || size > MaxSize {
		return nil, fmt.Errorf("qr size %d outside [%d, %d]", size, MinSize, MaxSize)
	}
	png, err := qrcode.Encode(payload, r.level, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr: %w", err)
	}
	return png, nil
}
