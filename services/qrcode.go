package services

import (
	"fmt"

	"github.com/skip2/go-qrcode"
)

// BookingQR renders the booking code as a PNG for staff to scan at check-in.
func BookingQR(code string, size int) ([]byte, error) {
	if code == "" {
		return nil, invalidInput("booking_code", "booking code is required")
	}
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(code, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}
