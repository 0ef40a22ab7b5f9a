package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fabriqs/wedding-pix/payment"
)

// unwrap returns the object nested under "data" when the backend answers with an
// envelope, and the body itself otherwise.
func unwrap(body []byte) []byte {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return body
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) || data[0] != '{' {
		return body
	}
	return data
}

// wireIntent accepts every field name the backend has used for the PIX code and
// its image over time.
type wireIntent struct {
	ID     string      `json:"id"`
	Amount json.Number `json:"amount"`
	Status string      `json:"status"`

	Code          string `json:"code"`
	BrCode        string `json:"brCode"`
	PixCopiaECola string `json:"pixCopiaECola"`
	PixCode       string `json:"pix_code"`

	ImageData    string `json:"imageData"`
	BrCodeBase64 string `json:"brCodeBase64"`
	QRCodeBase64 string `json:"qrCodeBase64"`
	QRCodeURL    string `json:"qrCodeUrl"`
	QRCode       string `json:"qr_code"`

	ExpiresAt       string `json:"expiresAt"`
	ExpiresAtLegacy string `json:"expires_at"`
	CreatedAt       string `json:"createdAt"`
	UpdatedAt       string `json:"updatedAt"`
}

func decodeWire(body []byte) (*wireIntent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errEmptyResponse
	}
	var w wireIntent
	if err := json.Unmarshal(unwrap(body), &w); err != nil {
		return nil, fmt.Errorf("decode payment response: %w", err)
	}
	return &w, nil
}

func decodeIntent(body []byte) (*payment.Intent, error) {
	w, err := decodeWire(body)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(w.ID) == "" {
		return nil, fmt.Errorf("decode payment response: missing payment id")
	}

	intent := &payment.Intent{
		ID:        w.ID,
		Code:      firstNonEmpty(w.BrCode, w.PixCopiaECola, w.Code, w.PixCode),
		ImageData: firstNonEmpty(w.BrCodeBase64, w.QRCodeBase64, w.QRCodeURL, w.ImageData, w.QRCode),
		Status:    payment.ParseStatus(w.Status),
	}
	if amount, ok := parseAmount(w.Amount); ok {
		intent.Amount = amount
	}
	if ts, ok := parseTime(firstNonEmpty(w.ExpiresAt, w.ExpiresAtLegacy)); ok {
		intent.ExpiresAt = ts
	}
	return intent, nil
}

func decodeStatus(body []byte) (*payment.StatusResult, error) {
	w, err := decodeWire(body)
	if err != nil {
		return nil, err
	}

	result := &payment.StatusResult{
		ID:     w.ID,
		Status: payment.ParseStatus(w.Status),
	}
	if amount, ok := parseAmount(w.Amount); ok {
		result.Amount = &amount
	}
	if ts, ok := parseTime(w.CreatedAt); ok {
		result.CreatedAt = &ts
	}
	if ts, ok := parseTime(w.UpdatedAt); ok {
		result.UpdatedAt = &ts
	}
	if ts, ok := parseTime(firstNonEmpty(w.ExpiresAt, w.ExpiresAtLegacy)); ok {
		result.ExpiresAt = &ts
	}
	return result, nil
}

func parseAmount(n json.Number) (int64, bool) {
	if n == "" {
		return 0, false
	}
	if v, err := n.Int64(); err == nil {
		return v, true
	}
	if f, err := n.Float64(); err == nil {
		return int64(f + 0.5), true
	}
	return 0, false
}

func parseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z07:00", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
