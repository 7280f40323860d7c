package benefits

import (
	"encoding/json"
	"fmt"
	"time"

	"rsc.io/qr"
)

// Payload is the JSON document embedded in a voucher's QR image.
type Payload struct {
	Code      string    `json:"code"`
	BenefitID BenefitID `json:"benefit_id"`
	IssuedAt  string    `json:"issued_at"`
	Issuer    string    `json:"issuer"`
}

// NewPayload builds the scannable payload for v.
func NewPayload(v Voucher, issuer string) Payload {
	return Payload{
		Code:      v.Code,
		BenefitID: v.Benefit.ID,
		IssuedAt:  v.IssuedAt.UTC().Format(time.RFC3339),
		Issuer:    issuer,
	}
}

// Encoder turns a payload into an image. Failures are recoverable: the
// voucher stays valid and the raw code is shown instead.
type Encoder interface {
	Encode(p Payload) ([]byte, error)
}

// QREncoder renders payloads as QR code PNGs.
type QREncoder struct {
	Level qr.Level
	// Scale is the pixel size of one module; zero keeps the library default.
	Scale int
}

// NewQREncoder returns an encoder with medium error correction.
func NewQREncoder() QREncoder {
	return QREncoder{Level: qr.M, Scale: 6}
}

// Encode returns a PNG image of the JSON-encoded payload.
func (e QREncoder) Encode(p Payload) ([]byte, error) {
	if p.Code == "" {
		return nil, fmt.Errorf("encode payload: empty code")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	code, err := qr.Encode(string(data), e.Level)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	if e.Scale > 0 {
		code.Scale = e.Scale
	}
	return code.PNG(), nil
}

// DecodePayload parses the JSON carried by a scanned code.
func DecodePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	if err := ValidateCode(p.Code); err != nil {
		return Payload{}, err
	}
	if p.BenefitID == "" {
		return Payload{}, fmt.Errorf("decode payload: %w", ErrInvalidBenefitReference)
	}
	if _, err := time.Parse(time.RFC3339, p.IssuedAt); err != nil {
		return Payload{}, fmt.Errorf("decode payload: issued_at: %w", err)
	}
	return p, nil
}
