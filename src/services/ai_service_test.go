package services

import (
	"context"
	"errors"
	"testing"

	"github.com/gerenciause-netizen/smart-trader/src/audit"
	"github.com/gerenciause-netizen/smart-trader/src/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	resp     *genai.GenerateContentResponse
	err      error
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, _ string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.contents = contents
	f.config = config
	return f.resp, f.err
}

func textResponse(text string, sources ...*genai.GroundingChunkWeb) *genai.GenerateContentResponse {
	cand := &genai.Candidate{Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: text}}}}
	if len(sources) > 0 {
		meta := &genai.GroundingMetadata{}
		for _, s := range sources {
			meta.GroundingChunks = append(meta.GroundingChunks, &genai.GroundingChunk{Web: s})
		}
		cand.GroundingMetadata = meta
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{cand}}
}

func TestNewAIServiceRequiresKey(t *testing.T) {
	_, err := NewAIService(context.Background(), " ", "gemini", 0, nil)
	assert.ErrorIs(t, err, ErrAIKeyMissing)
}

func TestAnalyzePerformanceWithCitations(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse("## Resumen\nBuen control de riesgo.",
		&genai.GroundingChunkWeb{URI: "https://news.example.com/a", Title: "Mercados"},
		&genai.GroundingChunkWeb{URI: "https://news.example.com/a", Title: "Mercados"},
		&genai.GroundingChunkWeb{URI: "https://news.example.com/b"},
	)}
	svc := newAIService(gen, "gemini-test", 2, nil)

	txs := []models.Transaction{
		execution("2024-01-15", "TSLA", 5, 210, -1051, ""),
		execution("2024-01-12", "AAPL", -10, 190, 1899, "Breakout"),
		execution("2024-01-10", "AAPL", 10, 185, -1851, "Breakout"),
	}
	insight, err := svc.AnalyzePerformance(context.Background(), txs)
	require.NoError(t, err)

	assert.Equal(t, 2, insight.RowsUsed)
	require.Len(t, insight.Citations, 2)
	assert.Equal(t, "https://news.example.com/b", insight.Citations[1].Title)
	assert.Contains(t, insight.Markdown, "**Fuentes de Mercado:**")
	assert.Contains(t, insight.Markdown, "- [Mercados](https://news.example.com/a)")
	assert.Contains(t, insight.HTML, "<h2>Resumen</h2>")

	require.NotNil(t, gen.config)
	require.Len(t, gen.config.Tools, 1)
	assert.NotNil(t, gen.config.Tools[0].GoogleSearch)
	assert.EqualValues(t, 16384, *gen.config.ThinkingConfig.ThinkingBudget)
	prompt := gen.contents[0].Parts[0].Text
	assert.Contains(t, prompt, "Uncategorized")
	assert.NotContains(t, prompt, "2024-01-10")
}

func TestAnalyzePerformanceReturnsErrorAsText(t *testing.T) {
	svc := newAIService(&fakeGenerator{err: errors.New("quota exceeded")}, "gemini-test", 0, nil)

	insight, err := svc.AnalyzePerformance(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, insight.Markdown, "quota exceeded")
	assert.Empty(t, insight.Citations)
}

func TestAnalyzePerformanceEmptyAnswer(t *testing.T) {
	svc := newAIService(&fakeGenerator{resp: textResponse("  ")}, "gemini-test", 0, nil)

	insight, err := svc.AnalyzePerformance(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, noInsightText, insight.Markdown)
}

func TestAnalyzeChart(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse("Setup válido.\n[SENTIMENT] LONG: 70%, SHORT: 30%\n[TRADE_PLAN] ENTRY: 100, STOP: 95, TARGET: 110")}
	svc := newAIService(gen, "gemini-test", 0, nil)

	text, err := svc.AnalyzeChart(context.Background(), audit.ChartAuditRequest{
		Chart:      audit.Image{Data: pngBytes, MIMEType: "image/png"},
		Strategies: []models.StrategyCard{{Title: "ORB", Description: "Opening range"}},
	})
	require.NoError(t, err)
	assert.Contains(t, text, "[SENTIMENT] LONG: 70%")

	assert.Nil(t, gen.config.Tools)
	assert.EqualValues(t, 24576, *gen.config.ThinkingConfig.ThinkingBudget)
	parts := gen.contents[0].Parts
	require.Len(t, parts, 3)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/png", parts[1].InlineData.MIMEType)

	gen.resp = textResponse("")
	text, err = svc.AnalyzeChart(context.Background(), audit.ChartAuditRequest{Chart: audit.Image{Data: pngBytes}})
	require.NoError(t, err)
	assert.Equal(t, noChartAuditText, text)

	_, err = svc.AnalyzeChart(context.Background(), audit.ChartAuditRequest{})
	assert.Error(t, err)
}
