package rules

import "strings"

// decorativeMarkers are filename fragments that mark an image as ornamental
// rather than content.
var decorativeMarkers = []string{
	"icon", "logo", "sprite", "decoration", "bullet", "arrow", "spacer",
}

// isDecorativeImage reports whether src points at an image that should be
// excluded from responsiveness and accessibility sampling. SVGs and data URIs
// are treated as decorative regardless of name.
func isDecorativeImage(src string) bool {
	s := strings.ToLower(strings.TrimSpace(src))
	if s == "" {
		return true
	}
	if strings.HasPrefix(s, "data:") {
		return true
	}
	if strings.Contains(s, ".svg") {
		return true
	}
	for _, m := range decorativeMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// clampScore keeps a deducted score inside [0,100].
func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
