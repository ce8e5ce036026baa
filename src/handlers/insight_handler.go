package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/services"
	"github.com/gerenciause-netizen/smart-trader/src/utils"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// AILimiter throttles model calls per user; limiters idle for an hour are dropped.
type AILimiter struct {
	every    time.Duration
	burst    int
	limiters *cache.Cache
}

func NewAILimiter(every time.Duration, burst int) *AILimiter {
	return &AILimiter{every: every, burst: burst, limiters: cache.New(time.Hour, 2*time.Hour)}
}

func (l *AILimiter) Allow(userID int64) bool {
	if l == nil {
		return true
	}
	key := strconv.FormatInt(userID, 10)
	if v, found := l.limiters.Get(key); found {
		l.limiters.SetDefault(key, v)
		return v.(*rate.Limiter).Allow()
	}
	limiter := rate.NewLimiter(rate.Every(l.every), l.burst)
	l.limiters.SetDefault(key, limiter)
	return limiter.Allow()
}

// DefaultAILimiter allows a burst of 5 model calls, then one every 12 seconds.
func DefaultAILimiter() *AILimiter {
	return NewAILimiter(12*time.Second, 5)
}

// InsightHandler serves the AI commentary on a partition's history.
type InsightHandler struct {
	transactions services.TransactionService
	ai           services.AIService
	limiter      *AILimiter
}

// NewInsightHandler accepts a nil ai when no API key is configured.
func NewInsightHandler(transactions services.TransactionService, ai services.AIService, limiter *AILimiter) *InsightHandler {
	return &InsightHandler{transactions: transactions, ai: ai, limiter: limiter}
}

// HandlePerformanceInsight asks the model to review the partition's journal.
// Model failures come back as the insight text with a 200.
func (h *InsightHandler) HandlePerformanceInsight(w http.ResponseWriter, r *http.Request) {
	userID, account, ok := identity(w, r)
	if !ok {
		return
	}
	if h.ai == nil {
		sendServiceError(w, r, services.ErrAIKeyMissing, "AI unavailable")
		return
	}
	if !h.limiter.Allow(userID) {
		sendJSONError(w, "Too many AI requests, try again shortly", http.StatusTooManyRequests)
		return
	}

	txs, err := h.transactions.List(r.Context(), userID, account)
	if err != nil {
		sendServiceError(w, r, err, "Error retrieving transactions")
		return
	}

	insight, err := h.ai.AnalyzePerformance(r.Context(), txs)
	if err != nil {
		sendServiceError(w, r, err, "Failed to analyze performance")
		return
	}
	logger.FromContext(r.Context()).Info("Performance insight generated", "rowsUsed", insight.RowsUsed, "citations", len(insight.Citations))
	utils.WriteJSON(w, http.StatusOK, insight)
}
