package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gerenciause-netizen/smart-trader/src/database"
	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/parsers"
	"github.com/gerenciause-netizen/smart-trader/src/security/validation"
	"github.com/gerenciause-netizen/smart-trader/src/services"
)

// sendServiceError maps service errors onto HTTP statuses. Unknown errors are
// logged and answered with fallback.
func sendServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		sendJSONError(w, "Not found", http.StatusNotFound)
	case errors.Is(err, services.ErrInvalidAccount), errors.Is(err, services.ErrEmptyUpdate),
		errors.Is(err, validation.ErrValidationFailed), parsers.IsValidationError(err):
		sendJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrAIKeyMissing):
		sendJSONError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, database.ErrMissingUniqueConstraint):
		logger.FromContext(r.Context()).Error("Schema is missing a unique constraint", "error", err)
		sendJSONError(w, err.Error(), http.StatusInternalServerError)
	case errors.Is(err, database.ErrDuplicate):
		sendJSONError(w, "Already exists", http.StatusConflict)
	default:
		logger.FromContext(r.Context()).Error(fallback, "error", err)
		sendJSONError(w, fmt.Sprintf("%s: %v", fallback, err), http.StatusInternalServerError)
	}
}

// readImageField loads one image part of a parsed multipart form. A missing
// field returns http.ErrMissingFile.
func readImageField(r *http.Request, field string, limit int64) (*services.UploadedImage, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return readImage(file, header, limit)
}

func readImage(file multipart.File, header *multipart.FileHeader, limit int64) (*services.UploadedImage, error) {
	if header.Size > limit {
		return nil, fmt.Errorf("%w: image too large, max %d MB", validation.ErrValidationFailed, limit/(1024*1024))
	}
	contentType, err := validation.ValidateImageContent(file)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: image too large, max %d MB", validation.ErrValidationFailed, limit/(1024*1024))
	}
	return &services.UploadedImage{Data: data, ContentType: contentType}, nil
}
