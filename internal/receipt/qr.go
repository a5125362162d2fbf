package receipt

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// RenderPayload draws a QR image locally from the opaque scannable payload.
// Used when the backend hands out only the payload and no image reference.
func RenderPayload(payload string) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("empty qr payload")
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to render qr: %w", err)
	}
	return png, nil
}
