package audit

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gerenciause-netizen/smart-trader/src/models"
)

var (
	sentimentRegex = regexp.MustCompile(`(?i)\[SENTIMENT\]\s*LONG:\s*(\d+)%,\s*SHORT:\s*(\d+)%`)
	tradePlanRegex = regexp.MustCompile(`(?i)\[TRADE_PLAN\]\s*ENTRY:\s*([^,]+),\s*STOP:\s*([^,]+),\s*TARGET:\s*(.+)`)
	trailerTag     = regexp.MustCompile(`(?i)\[(SENTIMENT|TRADE_PLAN)\].*`)
)

// DecodeTrailers extracts the sentiment and trade plan lines. A missing or
// malformed line yields nil for that part.
func DecodeTrailers(text string) (*models.Sentiment, *models.TradePlan) {
	return ParseSentiment(text), ParseTradePlan(text)
}

func ParseSentiment(text string) *models.Sentiment {
	m := sentimentRegex.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	long, err1 := strconv.Atoi(m[1])
	short, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return nil
	}
	return &models.Sentiment{Long: long, Short: short}
}

func ParseTradePlan(text string) *models.TradePlan {
	m := tradePlanRegex.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return &models.TradePlan{
		Entry:  strings.TrimSpace(m[1]),
		Stop:   strings.TrimSpace(m[2]),
		Target: strings.TrimSpace(m[3]),
	}
}

// StripTrailers cuts every line from a trailer tag to its end, wherever the
// tag appears, and drops lines left blank by the cut.
func StripTrailers(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !trailerTag.MatchString(line) {
			kept = append(kept, line)
			continue
		}
		rest := strings.TrimSpace(trailerTag.ReplaceAllString(line, ""))
		if strings.Trim(rest, "*_ ") != "" {
			kept = append(kept, rest)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// Decorate fills the display fields of a stored analysis.
func Decorate(a *models.ChartAnalysis) {
	a.Sentiment, a.TradePlan = DecodeTrailers(a.AnalysisText)
	a.DisplayText = StripTrailers(a.AnalysisText)
	if html, err := RenderMarkdown(a.DisplayText); err == nil {
		a.DisplayHTML = html
	}
}
