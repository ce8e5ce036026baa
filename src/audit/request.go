package audit

import (
	"context"
	"fmt"

	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/models"
	"google.golang.org/genai"
)

// MaxStrategyReferences caps the strategy cards attached to one audit.
const MaxStrategyReferences = 3

// Image is an inline image payload.
type Image struct {
	Data     []byte
	MIMEType string
}

// ImageLoader fetches a stored image by its public URL.
type ImageLoader interface {
	LoadImage(ctx context.Context, url string) (Image, error)
}

// ChartAuditRequest is everything a chart audit sends to the model.
type ChartAuditRequest struct {
	Chart      Image
	Calendar   *Image
	Strategies []models.StrategyCard
}

// BuildChartAuditParts assembles the multi-part prompt: instruction, chart,
// optional calendar, then up to MaxStrategyReferences strategy references. A
// card whose image cannot be loaded is sent as text only.
func BuildChartAuditParts(ctx context.Context, req ChartAuditRequest, loader ImageLoader) []*genai.Part {
	parts := []*genai.Part{
		{Text: chartInstruction(req.Calendar != nil)},
		genai.NewPartFromBytes(req.Chart.Data, mimeOrJPEG(req.Chart.MIMEType)),
	}

	if req.Calendar != nil {
		parts = append(parts,
			&genai.Part{Text: CalendarLabel},
			genai.NewPartFromBytes(req.Calendar.Data, mimeOrJPEG(req.Calendar.MIMEType)),
		)
	}

	cards := req.Strategies
	if len(cards) > MaxStrategyReferences {
		cards = cards[:MaxStrategyReferences]
	}
	for _, card := range cards {
		summary := fmt.Sprintf("%s. %s", card.Title, card.Description)
		if loader == nil || card.ImageURL == "" {
			parts = append(parts, &genai.Part{Text: StrategyTextLabel + " " + summary})
			continue
		}
		img, err := loader.LoadImage(ctx, card.ImageURL)
		if err != nil {
			logger.FromContext(ctx).Warn("Strategy reference image unavailable, sending text only", "cardID", card.ID, "error", err)
			parts = append(parts, &genai.Part{Text: StrategyTextLabel + " " + summary})
			continue
		}
		parts = append(parts,
			&genai.Part{Text: StrategyReferenceLabel + " " + summary},
			genai.NewPartFromBytes(img.Data, mimeOrJPEG(img.MIMEType)),
		)
	}
	return parts
}

func mimeOrJPEG(m string) string {
	if m == "" {
		return "image/jpeg"
	}
	return m
}
