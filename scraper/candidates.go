package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Candidate script blobs shorter than this are never JSON state bundles.
const minCandidateLen = 200

// ScriptCandidates returns the text of <script> elements likely to embed
// the result-set state bundle: long content mentioning at least one
// listing-indicative keyword. Order follows document order so the primary
// bundle tends to come out first.
func ScriptCandidates(doc *goquery.Document, keywords []string) []string {
	re := keywordPattern(keywords)

	var candidates []string
	doc.Find("script").Each(func(i int, s *goquery.Selection) {
		content := s.Text()
		if strings.TrimSpace(content) == "" {
			return
		}
		if len(content) > minCandidateLen && re.MatchString(content) {
			candidates = append(candidates, content)
		}
	})
	return candidates
}

func keywordPattern(keywords []string) *regexp.Regexp {
	quoted := make([]string, len(keywords))
	for i, kw := range keywords {
		quoted[i] = regexp.QuoteMeta(kw)
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
}
