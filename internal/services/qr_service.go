package services

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"net/url"

	"github.com/skip2/go-qrcode"
)

// QRService renders deposit checkout links as QR codes for mobile clients.
type QRService struct {
	checkoutBaseURL string
	size            int
}

func NewQRService(checkoutBaseURL string) *QRService {
	return &QRService{checkoutBaseURL: checkoutBaseURL, size: 256}
}

// CheckoutURL returns the gateway checkout page for a deposit intent.
func (s *QRService) CheckoutURL(gatewayRef string) string {
	return s.checkoutBaseURL + "?ref=" + url.QueryEscape(gatewayRef)
}

// RenderPNG encodes content as a base64 PNG QR code.
func (s *QRService) RenderPNG(content string) (string, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(s.size)); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
