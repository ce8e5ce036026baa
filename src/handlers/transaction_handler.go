package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/gerenciause-netizen/smart-trader/src/config"
	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/models"
	"github.com/gerenciause-netizen/smart-trader/src/security/validation"
	"github.com/gerenciause-netizen/smart-trader/src/services"
	"github.com/gerenciause-netizen/smart-trader/src/utils"
	"github.com/go-chi/chi/v5"
)

// TransactionHandler edits journal rows and the per-symbol annotations shared
// by every execution of a trade.
type TransactionHandler struct {
	transactions services.TransactionService
	charts       services.ChartService
}

func NewTransactionHandler(transactions services.TransactionService, charts services.ChartService) *TransactionHandler {
	return &TransactionHandler{transactions: transactions, charts: charts}
}

func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, account, ok := identity(w, r)
	if !ok {
		return
	}
	txs, err := h.transactions.List(r.Context(), userID, account)
	if err != nil {
		sendServiceError(w, r, err, "Error retrieving transactions")
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	utils.WriteJSONWithETag(w, r, txs)
}

func (h *TransactionHandler) HandleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, account, ok := identity(w, r)
	if !ok {
		return
	}

	var upd models.TransactionUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if upd.Symbol != nil {
		*upd.Symbol = strings.TrimSpace(*upd.Symbol)
		if err := validation.ValidateSymbol(*upd.Symbol); err != nil {
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if upd.Date != nil {
		if _, err := validation.ValidateDateString(*upd.Date, "date"); err != nil {
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	for _, text := range []*string{upd.Description, upd.Strategy, upd.TransactionType, upd.Account} {
		if text != nil {
			*text = validation.CleanUserText(*text)
		}
	}

	tx, err := h.transactions.Update(r.Context(), userID, account, chi.URLParam(r, "id"), upd)
	if err != nil {
		sendServiceError(w, r, err, "Failed to update transaction")
		return
	}
	utils.WriteJSON(w, http.StatusOK, tx)
}

func (h *TransactionHandler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, account, ok := identity(w, r)
	if !ok {
		return
	}
	if !requireConfirmation(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.transactions.Delete(r.Context(), userID, account, id); err != nil {
		sendServiceError(w, r, err, "Failed to delete transaction")
		return
	}
	logger.FromContext(r.Context()).Info("Transaction deleted", "transactionID", id)
	w.WriteHeader(http.StatusNoContent)
}

// symbolParam returns the trade key exactly as imported. chi matches on the
// raw path when the request escapes reserved characters such as '/'.
func symbolParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	symbol := chi.URLParam(r, "symbol")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(symbol)
		if err != nil {
			sendJSONError(w, "Invalid symbol encoding", http.StatusBadRequest)
			return "", false
		}
		symbol = unescaped
	}
	if err := validation.ValidateSymbol(symbol); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return symbol, true
}

type updatedResponse struct {
	Updated  int64  `json:"updated"`
	ImageURL string `json:"image_url,omitempty"`
}

// HandleSetTradeStrategy retags every execution of a symbol.
func (h *TransactionHandler) HandleSetTradeStrategy(w http.ResponseWriter, r *http.Request) {
	userID, account, ok := identity(w, r)
	if !ok {
		return
	}
	symbol, ok := symbolParam(w, r)
	if !ok {
		return
	}

	var req struct {
		Strategy string `json:"strategy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	strategy := validation.CleanUserText(req.Strategy)
	if err := validation.ValidateStringMaxLength(strategy, validation.DefaultMaxStringLength, "strategy"); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	n, err := h.transactions.SetSymbolStrategy(r.Context(), userID, account, symbol, strategy)
	if err != nil {
		sendServiceError(w, r, err, "Failed to update strategy")
		return
	}
	utils.WriteJSON(w, http.StatusOK, updatedResponse{Updated: n})
}

// HandleLinkAnalysis attaches a stored chart audit to every execution of a symbol.
func (h *TransactionHandler) HandleLinkAnalysis(w http.ResponseWriter, r *http.Request) {
	userID, account, ok := identity(w, r)
	if !ok {
		return
	}
	symbol, ok := symbolParam(w, r)
	if !ok {
		return
	}

	var req struct {
		AnalysisID string `json:"analysis_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AnalysisID == "" {
		sendJSONError(w, "analysis_id is required", http.StatusBadRequest)
		return
	}

	analysis, err := h.charts.Get(r.Context(), userID, account, req.AnalysisID)
	if err != nil {
		sendServiceError(w, r, err, "Failed to load analysis")
		return
	}

	n, err := h.transactions.LinkEvidence(r.Context(), userID, account, symbol, services.EvidenceLink{
		AnalysisID: analysis.ID,
		ImageURL:   analysis.ImageURL,
	})
	if err != nil {
		sendServiceError(w, r, err, "Failed to link analysis")
		return
	}
	utils.WriteJSON(w, http.StatusOK, updatedResponse{Updated: n, ImageURL: analysis.ImageURL})
}

// HandleUploadTradeEvidence stores a manual chart screenshot for a symbol.
func (h *TransactionHandler) HandleUploadTradeEvidence(w http.ResponseWriter, r *http.Request) {
	userID, account, ok := identity(w, r)
	if !ok {
		return
	}
	symbol, ok := symbolParam(w, r)
	if !ok {
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
		sendServiceError(w, r, err, "Failed to read evidence image")
		return
	}

	imageURL, err := h.charts.UploadEvidence(r.Context(), userID, *img)
	if err != nil {
		sendServiceError(w, r, err, "Failed to store evidence image")
		return
	}
	n, err := h.transactions.LinkEvidence(r.Context(), userID, account, symbol, services.EvidenceLink{ImageURL: imageURL})
	if err != nil {
		h.charts.DiscardEvidence(r.Context(), imageURL)
		sendServiceError(w, r, err, "Failed to link evidence")
		return
	}
	utils.WriteJSON(w, http.StatusOK, updatedResponse{Updated: n, ImageURL: imageURL})
}
