package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gerenciause-netizen/smart-trader/src/audit"
	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/models"
	"google.golang.org/genai"
)

const (
	performanceThinkingBudget int32 = 16384
	chartThinkingBudget       int32 = 24576

	noInsightText      = "No se generó análisis."
	noChartAuditText   = "No se pudo completar el análisis visual."
	insightErrorPrefix = "Error al generar el análisis: "
)

// contentGenerator is the slice of the genai client the service calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type aiServiceImpl struct {
	models   contentGenerator
	model    string
	rowLimit int
	images   audit.ImageLoader
}

// NewAIService builds the Gemini-backed service. An empty apiKey returns
// ErrAIKeyMissing so callers can degrade the AI endpoints instead of failing startup.
func NewAIService(ctx context.Context, apiKey, model string, rowLimit int, images audit.ImageLoader) (AIService, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrAIKeyMissing
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return newAIService(client.Models, model, rowLimit, images), nil
}

func newAIService(gen contentGenerator, model string, rowLimit int, images audit.ImageLoader) *aiServiceImpl {
	if rowLimit <= 0 {
		rowLimit = audit.DefaultInsightRowLimit
	}
	return &aiServiceImpl{models: gen, model: model, rowLimit: rowLimit, images: images}
}

// AnalyzePerformance asks for a coaching review of the most recent rows with
// web search grounding. Generation failures come back as the insight text so
// the client always has something to render.
func (s *aiServiceImpl) AnalyzePerformance(ctx context.Context, txs []models.Transaction) (*models.PerformanceInsight, error) {
	prompt, used, err := audit.BuildPerformancePrompt(txs, s.rowLimit)
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).With("model", s.model, "rows", used)

	budget := performanceThinkingBudget
	resp, err := s.models.GenerateContent(ctx, s.model,
		[]*genai.Content{genai.NewContentFromParts([]*genai.Part{{Text: prompt}}, genai.RoleUser)},
		&genai.GenerateContentConfig{
			Tools:          []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
			ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: &budget},
		})

	insight := &models.PerformanceInsight{RowsUsed: used}
	if err != nil {
		log.Error("Performance insight generation failed", "error", err)
		insight.Markdown = insightErrorPrefix + err.Error()
	} else {
		insight.Markdown = strings.TrimSpace(resp.Text())
		if insight.Markdown == "" {
			insight.Markdown = noInsightText
		}
		insight.Citations = citations(resp)
		insight.Markdown = audit.AppendCitations(insight.Markdown, insight.Citations)
		log.Info("Performance insight generated", "citations", len(insight.Citations))
	}

	html, err := audit.RenderMarkdown(insight.Markdown)
	if err != nil {
		return nil, err
	}
	insight.HTML = html
	return insight, nil
}

// AnalyzeChart runs the visual audit and returns the raw text, trailers included.
func (s *aiServiceImpl) AnalyzeChart(ctx context.Context, req audit.ChartAuditRequest) (string, error) {
	if len(req.Chart.Data) == 0 {
		return "", errors.New("chart image is empty")
	}
	parts := audit.BuildChartAuditParts(ctx, req, s.images)

	budget := chartThinkingBudget
	resp, err := s.models.GenerateContent(ctx, s.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: &budget}})
	if err != nil {
		logger.FromContext(ctx).Error("Chart audit generation failed", "model", s.model, "error", err)
		return "", fmt.Errorf("chart audit failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		text = noChartAuditText
	}
	return text, nil
}

// citations collects the web sources of the first candidate, dropping duplicates.
func citations(resp *genai.GenerateContentResponse) []models.Citation {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []models.Citation
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" || seen[chunk.Web.URI] {
			continue
		}
		seen[chunk.Web.URI] = true
		title := chunk.Web.Title
		if title == "" {
			title = chunk.Web.URI
		}
		out = append(out, models.Citation{Title: title, URI: chunk.Web.URI})
	}
	return out
}
