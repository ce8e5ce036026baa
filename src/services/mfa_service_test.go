package services

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMFAEnrollmentAndValidation(t *testing.T) {
	svc := NewMFAService()
	enrollment, err := svc.GenerateMFASecret("trader@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.Secret)
	assert.Contains(t, enrollment.URL, "otpauth://totp/")

	png, err := base64.StdEncoding.DecodeString(enrollment.QRCodeBase64)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(png[:4]))

	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)
	assert.True(t, svc.ValidateToken(enrollment.Secret, " "+code+" "))
	assert.False(t, svc.ValidateToken(enrollment.Secret, "000000x"))
	assert.False(t, svc.ValidateToken("", code))
}
