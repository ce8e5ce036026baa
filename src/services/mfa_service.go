package services

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"

	"github.com/pquerna/otp/totp"
)

const mfaIssuer = "Smart Trader"

// MFAEnrollment is what the client needs to register an authenticator app.
type MFAEnrollment struct {
	Secret       string `json:"secret"`
	URL          string `json:"otpauth_url"`
	QRCodeBase64 string `json:"qr_code_png_base64"`
}

type MFAService struct{}

func NewMFAService() *MFAService {
	return &MFAService{}
}

// GenerateMFASecret creates a TOTP secret for accountName along with a QR code PNG.
func (s *MFAService) GenerateMFASecret(accountName string) (*MFAEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      mfaIssuer,
		AccountName: accountName,
	})
	if err != nil {
		return nil, err
	}

	img, err := key.Image(200, 200)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	return &MFAEnrollment{
		Secret:       key.Secret(),
		URL:          key.URL(),
		QRCodeBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// ValidateToken checks a 6-digit code against secret with the default skew.
func (s *MFAService) ValidateToken(secret, code string) bool {
	if secret == "" {
		return false
	}
	return totp.Validate(strings.TrimSpace(code), secret)
}
