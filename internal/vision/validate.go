package vision

import (
	"strings"

	"github.com/designscore/designscore/internal/analysis"
)

// minResponseChars is the hard floor below which a response cannot plausibly
// describe a screenshot, regardless of the analysis type's length budget.
const minResponseChars = 100

// groundingVocabulary holds terms a visually grounded response is expected to
// contain at least one of.
var groundingVocabulary = []string{
	"see", "visible", "visual", "screenshot", "image", "display",
	"color", "layout", "text", "button", "navigation", "design",
}

// validateResponse gates a vision model reply: it must be non-empty, long
// enough to be substantive, and contain at least one visual-observation term.
// A reply failing any check is treated the same as no reply at all.
func validateResponse(content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return analysis.NewStageError(analysis.StageVisionAnalysis, analysis.KindValidation,
			"model returned empty response", nil)
	}
	if len(trimmed) < minResponseChars {
		return analysis.NewStageError(analysis.StageVisionAnalysis, analysis.KindValidation,
			"model returned insufficient analysis", nil)
	}

	lower := strings.ToLower(trimmed)
	for _, term := range groundingVocabulary {
		if strings.Contains(lower, term) {
			return nil
		}
	}
	return analysis.NewStageError(analysis.StageVisionAnalysis, analysis.KindValidation,
		"response contains no visual observations", nil)
}
