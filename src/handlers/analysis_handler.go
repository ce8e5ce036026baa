package handlers

import (
	"net/http"
	"strconv"

	"github.com/gerenciause-netizen/smart-trader/src/config"
	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/models"
	"github.com/gerenciause-netizen/smart-trader/src/services"
	"github.com/gerenciause-netizen/smart-trader/src/utils"
	"github.com/go-chi/chi/v5"
)

// AnalysisHandler serves chart audits and the daily macro calendar.
type AnalysisHandler struct {
	charts    services.ChartService
	calendars services.CalendarService
	limiter   *AILimiter
}

func NewAnalysisHandler(charts services.ChartService, calendars services.CalendarService, limiter *AILimiter) *AnalysisHandler {
	return &AnalysisHandler{charts: charts, calendars: calendars, limiter: limiter}
}

// HandleAnalyzeChart audits an uploaded chart. The multipart form carries the
// "chart" image and, optionally, a "calendar" image that becomes today's calendar.
func (h *AnalysisHandler) HandleAnalyzeChart(w http.ResponseWriter, r *http.Request) {
	userID, account, ok := identity(w, r)
	if !ok {
		return
	}
	log := logger.FromContext(r.Context())
	limit := config.Cfg.MaxImageSizeBytes

	if err := r.ParseMultipartForm(2 * limit); err != nil {
		sendJSONError(w, "Failed to parse upload or images too large", http.StatusBadRequest)
		return
	}

	chart, err := readImageField(r, "chart", limit)
	if err != nil {
		if err == http.ErrMissingFile {
			sendJSONError(w, "A 'chart' image is required", http.StatusBadRequest)
			return
		}
		sendServiceError(w, r, err, "Failed to read chart image")
		return
	}

	in := services.ChartAuditInput{Chart: *chart}
	calendar, err := readImageField(r, "calendar", limit)
	switch {
	case err == nil:
		in.Calendar = calendar
	case err != http.ErrMissingFile:
		sendServiceError(w, r, err, "Failed to read calendar image")
		return
	}

	if !h.limiter.Allow(userID) {
		sendJSONError(w, "Too many AI requests, try again shortly", http.StatusTooManyRequests)
		return
	}

	analysis, err := h.charts.Analyze(r.Context(), userID, account, in)
	if err != nil {
		sendServiceError(w, r, err, "Chart audit failed")
		return
	}
	log.Info("Chart audit stored", "analysisID", analysis.ID, "withCalendar", in.Calendar != nil)
	utils.WriteJSON(w, http.StatusCreated, analysis)
}

func (h *AnalysisHandler) HandleListAnalyses(w http.ResponseWriter, r *http.Request) {
	userID, account, ok := identity(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			sendJSONError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	analyses, err := h.charts.List(r.Context(), userID, account, limit)
	if err != nil {
		sendServiceError(w, r, err, "Error retrieving analyses")
		return
	}
	if analyses == nil {
		analyses = []models.ChartAnalysis{}
	}
	utils.WriteJSONWithETag(w, r, analyses)
}

func (h *AnalysisHandler) HandleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	userID, account, ok := identity(w, r)
	if !ok {
		return
	}
	analysis, err := h.charts.Get(r.Context(), userID, account, chi.URLParam(r, "id"))
	if err != nil {
		sendServiceError(w, r, err, "Error retrieving analysis")
		return
	}
	utils.WriteJSON(w, http.StatusOK, analysis)
}

func (h *AnalysisHandler) HandleDeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	userID, account, ok := identity(w, r)
	if !ok {
		return
	}
	if !requireConfirmation(w, r) {
		return
	}
	if err := h.charts.Delete(r.Context(), userID, account, chi.URLParam(r, "id")); err != nil {
		sendServiceError(w, r, err, "Failed to delete analysis")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AnalysisHandler) HandleGetTodayCalendar(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	calendar, err := h.calendars.Today(r.Context(), userID)
	if err != nil {
		sendServiceError(w, r, err, "Error retrieving calendar")
		return
	}
	utils.WriteJSON(w, http.StatusOK, calendar)
}

// HandleSetTodayCalendar replaces today's calendar with the "image" upload.
func (h *AnalysisHandler) HandleSetTodayCalendar(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	limit := config.Cfg.MaxImageSizeBytes
	if err := r.ParseMultipartForm(limit); err != nil {
		sendJSONError(w, "Failed to parse upload or image too large", http.StatusBadRequest)
		return
	}
	img, err := readImageField(r, "image", limit)
	if err != nil {
		if err == http.ErrMissingFile {
			sendJSONError(w, "An 'image' file is required", http.StatusBadRequest)
			return
		}
		sendServiceError(w, r, err, "Failed to read calendar image")
		return
	}

	calendar, err := h.calendars.SetToday(r.Context(), userID, *img)
	if err != nil {
		sendServiceError(w, r, err, "Failed to save calendar")
		return
	}
	utils.WriteJSON(w, http.StatusOK, calendar)
}
