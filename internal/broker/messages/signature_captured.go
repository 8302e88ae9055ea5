package messages

import "time"

// SignatureCaptured arrives from the signature kiosks once the customer has
// signed on the pad. The image is a finished PNG raster; the engine only
// attaches it.
type SignatureCaptured struct {
	ServiceID    uint64    `json:"service_id"`
	ImageBase64  string    `json:"image_base64"`
	SignerName   *string   `json:"signer_name,omitempty"`
	SessionToken string    `json:"session_token"`
	CapturedAt   time.Time `json:"captured_at"`
}
