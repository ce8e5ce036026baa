package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gerenciause-netizen/smart-trader/src/config"
	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/security/validation"
	"github.com/gerenciause-netizen/smart-trader/src/services"
	"github.com/gerenciause-netizen/smart-trader/src/utils"
)

// ImportHandler accepts broker statements pasted as text or uploaded as a file.
type ImportHandler struct {
	importService services.ImportService
}

func NewImportHandler(service services.ImportService) *ImportHandler {
	return &ImportHandler{importService: service}
}

type importJSONRequest struct {
	Source       string   `json:"source"`
	Content      string   `json:"content"`
	Strategy     string   `json:"strategy"`
	StartingCash *float64 `json:"starting_cash"`
}

// HandleImport parses a statement into the active partition. JSON bodies carry
// the pasted text; multipart bodies carry it in the "file" field.
func (h *ImportHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	userID, account, ok := identity(w, r)
	if !ok {
		return
	}
	log := logger.FromContext(r.Context())
	limit := config.Cfg.MaxUploadSizeBytes

	var req services.ImportRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		parsed, closeFile, err := h.multipartImport(r, limit)
		if err != nil {
			log.Warn("Rejected statement upload", "error", err)
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer closeFile()
		req = *parsed
	} else {
		var body importJSONRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, limit)).Decode(&body); err != nil {
			sendJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		req = services.ImportRequest{
			Source:               body.Source,
			Content:              strings.NewReader(body.Content),
			Strategy:             body.Strategy,
			StartingCashOverride: body.StartingCash,
		}
	}

	if req.StartingCashOverride != nil {
		if err := validation.ValidateStartingCash(*req.StartingCashOverride); err != nil {
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	summary, err := h.importService.Import(r.Context(), userID, account, req)
	if err != nil {
		sendServiceError(w, r, err, "Failed to import statement")
		return
	}
	log.Info("Statement imported", "imported", summary.Imported, "skipped", summary.SkippedRows)
	utils.WriteJSON(w, http.StatusOK, summary)
}

func (h *ImportHandler) multipartImport(r *http.Request, limit int64) (*services.ImportRequest, func(), error) {
	if err := r.ParseMultipartForm(limit); err != nil {
		return nil, nil, fmt.Errorf("failed to parse upload or file too large (max %d MB)", limit/(1024*1024))
	}

	req := &services.ImportRequest{
		Source:   r.FormValue("source"),
		Strategy: r.FormValue("strategy"),
	}
	if raw := strings.TrimSpace(r.FormValue("starting_cash")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("starting_cash must be a number")
		}
		req.StartingCashOverride = &v
	}

	file, header, err := r.FormFile("file")
	if err == http.ErrMissingFile {
		req.Content = strings.NewReader(r.FormValue("content"))
		return req, func() {}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to retrieve file from request")
	}
	if header.Size > limit {
		file.Close()
		return nil, nil, fmt.Errorf("file too large, max %d MB", limit/(1024*1024))
	}
	if err := validation.ValidateClientContentType(header.Header.Get("Content-Type")); err != nil {
		file.Close()
		return nil, nil, err
	}
	if _, err := validation.ValidateStatementContent(file); err != nil {
		file.Close()
		return nil, nil, err
	}
	req.Content = file
	return req, func() { file.Close() }, nil
}
