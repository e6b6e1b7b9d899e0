package services

import (
	"bytes"
	"fmt"
	"image/png"
	"time"

	"github.com/skip2/go-qrcode"

	"covergate-backend/models"
)

// QRCodeService handles QR code generation
type QRCodeService struct{}

// NewQRCodeService creates a new QR code service
func NewQRCodeService() *QRCodeService {
	return &QRCodeService{}
}

// GenerateQuoteQR encodes a quote's payment request as a PNG QR code.
func (s *QRCodeService) GenerateQuoteQR(quoteID uint64, assetAddress string, amount uint64) ([]byte, error) {
	payload := fmt.Sprintf("covergate:quote/%d?asset=%s&amount=%d", quoteID, assetAddress, amount)
	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, qr.Image(256)); err != nil {
		return nil, fmt.Errorf("failed to encode QR code to PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// HealthService handles health check business logic
type HealthService struct {
	quotes *QuoteService
}

// NewHealthService creates a new health service
func NewHealthService(quotes *QuoteService) *HealthService {
	return &HealthService{quotes: quotes}
}

// GetHealthStatus returns current health status
func (s *HealthService) GetHealthStatus() *models.HealthResponse {
	status := "healthy"
	message := "Backend is running"
	if s.quotes != nil && s.quotes.Paused() {
		status = "paused"
		message = "Mutating operations are paused"
	}
	return &models.HealthResponse{
		Status:    status,
		Message:   message,
		Timestamp: time.Now().Unix(),
	}
}
