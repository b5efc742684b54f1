package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/designscore/designscore/internal/analysis"
)

const (
	headingJumpPenalty   = 10
	longParagraphPenalty = 5
	longParagraphChars   = 400
	fontFallbackPenalty  = 15
)

var fontFamilyRe = regexp.MustCompile(`(?i)font-family:\s*([^;}]+)`)

// Typography scores heading order, paragraph length, and font fallback
// coverage from the parsed document.
func Typography(doc *goquery.Document) (analysis.TypographyMetric, error) {
	m := analysis.TypographyMetric{Score: 100}
	if doc == nil {
		return m, nil
	}

	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		level, err := strconv.Atoi(strings.TrimPrefix(goquery.NodeName(s), "h"))
		if err != nil {
			return
		}
		if len(text) > 50 {
			text = text[:50]
		}
		m.HeadingHierarchy = append(m.HeadingHierarchy, analysis.Heading{Level: level, Text: text})
	})

	for i := 1; i < len(m.HeadingHierarchy); i++ {
		prev, cur := m.HeadingHierarchy[i-1].Level, m.HeadingHierarchy[i].Level
		if cur > prev+1 {
			m.HierarchyViolations = append(m.HierarchyViolations,
				fmt.Sprintf("h%d followed by h%d", prev, cur))
			m.Score -= headingJumpPenalty
		}
	}

	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		m.ParagraphLengths = append(m.ParagraphLengths, len(text))
		if len(text) > longParagraphChars {
			m.LongParagraphs++
			m.Score -= longParagraphPenalty
		}
	})

	for _, decl := range fontFamilyDeclarations(doc) {
		fonts := splitFontList(decl)
		m.FontFallbacks = append(m.FontFallbacks, fonts)
		if len(fonts) < 2 {
			m.FallbackViolations = append(m.FallbackViolations, strings.Join(fonts, ", "))
			m.Score -= fontFallbackPenalty
		}
	}

	m.Score = clampScore(m.Score)
	return m, nil
}

// fontFamilyDeclarations collects the value of every font-family declaration
// found in <style> blocks and inline style attributes.
func fontFamilyDeclarations(doc *goquery.Document) []string {
	var css strings.Builder
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		css.WriteString(s.Text())
		css.WriteByte(' ')
	})
	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		if style, ok := s.Attr("style"); ok {
			css.WriteString(style)
			css.WriteByte(' ')
		}
	})

	var out []string
	for _, match := range fontFamilyRe.FindAllStringSubmatch(css.String(), -1) {
		out = append(out, match[1])
	}
	return out
}

func splitFontList(decl string) []string {
	var fonts []string
	for _, f := range strings.Split(decl, ",") {
		f = strings.Trim(strings.TrimSpace(f), `"'`)
		if f != "" {
			fonts = append(fonts, f)
		}
	}
	return fonts
}
