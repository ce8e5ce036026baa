package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/gerenciause-netizen/smart-trader/src/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleAudit = `## Setup
Ruptura limpia con volumen creciente.

[SENTIMENT] LONG: 70%, SHORT: 30%
[TRADE_PLAN] ENTRY: 185.50, STOP: 182, TARGET: 192 - 195`

func TestDecodeTrailers(t *testing.T) {
	sentiment, plan := DecodeTrailers(sampleAudit)
	require.NotNil(t, sentiment)
	assert.Equal(t, models.Sentiment{Long: 70, Short: 30}, *sentiment)
	require.NotNil(t, plan)
	assert.Equal(t, models.TradePlan{Entry: "185.50", Stop: "182", Target: "192 - 195"}, *plan)
}

func TestDecodeTrailersCaseInsensitive(t *testing.T) {
	sentiment, plan := DecodeTrailers("[sentiment] long: 55%,short: 45%\n[trade_plan] entry: 1, stop: 2, target: 3")
	require.NotNil(t, sentiment)
	assert.Equal(t, 55, sentiment.Long)
	require.NotNil(t, plan)
	assert.Equal(t, "3", plan.Target)
}

func TestDecodeTrailersMissing(t *testing.T) {
	sentiment, plan := DecodeTrailers("Sin conclusiones.\n[SENTIMENT] LONG: alto")
	assert.Nil(t, sentiment)
	assert.Nil(t, plan)
}

func TestStripTrailers(t *testing.T) {
	assert.Equal(t, "## Setup\nRuptura limpia con volumen creciente.", StripTrailers(sampleAudit))
	assert.Equal(t, "solo texto", StripTrailers("solo texto"))
}

func TestStripTrailersInsideMarkdown(t *testing.T) {
	text := "Volumen alto.\n**[SENTIMENT] LONG: 60%, SHORT: 40%**\n> Nota: [TRADE_PLAN] ENTRY: 1, STOP: 2, TARGET: 3"
	assert.Equal(t, "Volumen alto.\n> Nota:", StripTrailers(text))

	sentiment, plan := DecodeTrailers(text)
	require.NotNil(t, sentiment)
	assert.Equal(t, 60, sentiment.Long)
	require.NotNil(t, plan)
}

func TestDecorate(t *testing.T) {
	a := &models.ChartAnalysis{AnalysisText: sampleAudit}
	Decorate(a)
	assert.NotNil(t, a.Sentiment)
	assert.NotNil(t, a.TradePlan)
	assert.NotContains(t, a.DisplayText, "[SENTIMENT]")
	assert.Contains(t, a.DisplayHTML, "<h2>Setup</h2>")
}

func TestRenderMarkdownSanitizes(t *testing.T) {
	html, err := RenderMarkdown("**ok** <script>alert(1)</script> [x](javascript:alert(1))")
	require.NoError(t, err)
	assert.Contains(t, html, "<strong>ok</strong>")
	assert.NotContains(t, html, "<script>")
	assert.NotContains(t, html, "javascript:")
}

type fakeLoader struct {
	images map[string]Image
}

func (f fakeLoader) LoadImage(_ context.Context, url string) (Image, error) {
	img, ok := f.images[url]
	if !ok {
		return Image{}, errors.New("not found")
	}
	return img, nil
}

func TestBuildChartAuditParts(t *testing.T) {
	loader := fakeLoader{images: map[string]Image{
		"u1": {Data: []byte("card1"), MIMEType: "image/png"},
		"u3": {Data: []byte("card3")},
		"u4": {Data: []byte("card4")},
	}}
	req := ChartAuditRequest{
		Chart:    Image{Data: []byte("chart")},
		Calendar: &Image{Data: []byte("cal"), MIMEType: "image/webp"},
		Strategies: []models.StrategyCard{
			{ID: "1", Title: "ORB", Description: "Rango de apertura", ImageURL: "u1"},
			{ID: "2", Title: "VWAP", Description: "Rebote", ImageURL: "missing"},
			{ID: "3", Title: "Gap", Description: "Gap fill", ImageURL: "u3"},
			{ID: "4", Title: "Ignored", Description: "beyond the cap", ImageURL: "u4"},
		},
	}

	parts := BuildChartAuditParts(context.Background(), req, loader)
	require.Len(t, parts, 9)

	assert.Contains(t, parts[0].Text, "[SENTIMENT] LONG: X%, SHORT: Y%")
	assert.Contains(t, parts[0].Text, "Imagen 2")
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/jpeg", parts[1].InlineData.MIMEType)
	assert.Equal(t, []byte("chart"), parts[1].InlineData.Data)

	assert.Equal(t, CalendarLabel, parts[2].Text)
	assert.Equal(t, "image/webp", parts[3].InlineData.MIMEType)

	assert.Equal(t, "REFERENCIA ESTRATEGIA: ORB. Rango de apertura", parts[4].Text)
	assert.Equal(t, "image/png", parts[5].InlineData.MIMEType)
	assert.Equal(t, "REFERENCIA TEXTO: VWAP. Rebote", parts[6].Text)
	assert.Equal(t, "REFERENCIA ESTRATEGIA: Gap. Gap fill", parts[7].Text)
	assert.Equal(t, []byte("card3"), parts[8].InlineData.Data)
}

func TestBuildChartAuditPartsWithoutCalendar(t *testing.T) {
	parts := BuildChartAuditParts(context.Background(), ChartAuditRequest{Chart: Image{Data: []byte("c")}}, nil)
	require.Len(t, parts, 2)
	assert.NotContains(t, parts[0].Text, "Imagen 2")
}

func TestBuildPerformancePrompt(t *testing.T) {
	txs := make([]models.Transaction, 45)
	for i := range txs {
		txs[i] = models.Transaction{Date: "2024-01-01", Symbol: "AAPL", NetAmount: float64(i), TransactionType: "BUY"}
	}
	txs[0].Strategy = "Breakout"

	prompt, rows, err := BuildPerformancePrompt(txs, 40)
	require.NoError(t, err)
	assert.Equal(t, 40, rows)

	start := strings.Index(prompt, "[")
	end := strings.LastIndex(prompt, "]")
	require.True(t, start >= 0 && end > start)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(prompt[start:end+1]), &decoded))
	require.Len(t, decoded, 40)
	assert.Equal(t, "Breakout", decoded[0]["strategy"])
	assert.Equal(t, "Uncategorized", decoded[1]["strategy"])
	assert.Equal(t, 39.0, decoded[39]["pnl"])
	assert.Equal(t, "BUY", decoded[0]["type"])
}

func TestAppendCitations(t *testing.T) {
	assert.Equal(t, "texto", AppendCitations("texto", nil))
	out := AppendCitations("texto", []models.Citation{{Title: "Reuters", URI: "https://reuters.com/x"}})
	assert.Equal(t, "texto\n\n---\n**Fuentes de Mercado:**\n- [Reuters](https://reuters.com/x)", out)
}
