package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var htmlTagRe = regexp.MustCompile(`(?i)<(?:a|p|div|br|html|body|span|table|td|tr|img|font|b|strong)\b[^>]*>`)

func looksLikeHTML(text string) bool {
	return htmlTagRe.MatchString(text)
}

// flattenHTML returns the visible text of an email body followed by its link targets,
// which are frequently hidden behind innocent anchor text.
func flattenHTML(text string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return text
	}
	doc.Find("script, style").Remove()

	parts := []string{doc.Text()}
	doc.Find("a[href], area[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			parts = append(parts, href)
		}
	})
	return strings.Join(parts, "\n")
}
