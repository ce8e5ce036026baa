package validation

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gerenciause-netizen/smart-trader/src/logger"
)

// AllowedStatementContentTypes are the client-declared types accepted for broker exports.
var AllowedStatementContentTypes = map[string]bool{
	"text/csv":                  true,
	"application/csv":           true,
	"application/vnd.ms-excel":  true, // Often used for CSV by older Excel
	"text/plain":                true,
	"text/tab-separated-values": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": false, // .xlsx explicitly disallow
}

// AllowedImageContentTypes are the image types accepted for charts, calendars and strategy cards.
var AllowedImageContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

func normalizeContentType(contentType string) string {
	return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
}

// ValidateClientContentType checks the Content-Type header of an uploaded statement.
func ValidateClientContentType(contentType string) error {
	if allowed, exists := AllowedStatementContentTypes[normalizeContentType(contentType)]; !exists || !allowed {
		logger.L.Warn("Disallowed client-declared Content-Type", "contentType", contentType)
		return fmt.Errorf("%w: client-declared file type '%s' is not allowed for statement upload", ErrValidationFailed, contentType)
	}
	return nil
}

// isBinaryContent reports null bytes or invalid UTF-8, which a text export never has.
func isBinaryContent(buf []byte) bool {
	if bytes.IndexByte(buf, 0) != -1 {
		return true
	}
	// the sniff buffer may cut a multi-byte rune in half
	for i := 0; i < utf8.UTFMax && len(buf) > 0 && !utf8.Valid(buf); i++ {
		buf = buf[:len(buf)-1]
	}
	return !utf8.Valid(buf)
}

// sniff reads the first KB and rewinds.
func sniff(file io.ReadSeeker) ([]byte, error) {
	if file == nil {
		return nil, fmt.Errorf("file is nil")
	}
	buffer := make([]byte, 1024)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read file for content type checking: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to reset file read pointer: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrValidationFailed)
	}
	return buffer[:n], nil
}

// ValidateStatementContent checks that an uploaded export is text.
func ValidateStatementContent(file io.ReadSeeker) (string, error) {
	buf, err := sniff(file)
	if err != nil {
		return "", err
	}
	if isBinaryContent(buf) {
		logger.L.Warn("File rejected: Binary content detected in text upload")
		return "application/octet-stream", fmt.Errorf("%w: file appears to be binary, not a text export", ErrValidationFailed)
	}

	detected := normalizeContentType(http.DetectContentType(buf))
	if !strings.HasPrefix(detected, "text/") {
		logger.L.Warn("Disallowed detected file content type", "detectedContentType", detected)
		return detected, fmt.Errorf("%w: detected file content type '%s' is not allowed", ErrValidationFailed, detected)
	}
	logger.L.Debug("Statement content type validated", "detectedContentType", detected)
	return detected, nil
}

// ValidateImageContent checks the magic bytes of an uploaded image and
// returns its detected MIME type.
func ValidateImageContent(file io.ReadSeeker) (string, error) {
	buf, err := sniff(file)
	if err != nil {
		return "", err
	}
	detected := normalizeContentType(http.DetectContentType(buf))
	if !AllowedImageContentTypes[detected] {
		logger.L.Warn("Disallowed image content type", "detectedContentType", detected)
		return detected, fmt.Errorf("%w: detected image type '%s' is not allowed", ErrValidationFailed, detected)
	}
	return detected, nil
}
