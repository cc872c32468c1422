package scraper

import (
	"encoding/json"
	"regexp"
	"strings"
)

var assignmentRe = regexp.MustCompile(`(?s)=[\s]*(\{.*\})[\s]*;?$`)

// ExtractJSONValues recovers syntactically valid JSON values embedded in a
// script blob. Three strategies are tried in order and the first one that
// yields anything wins:
//
//  1. parse the whole trimmed blob when it already starts with { or [;
//  2. match a trailing assignment (window.__X__ = {...};) and parse its body;
//  3. scan left to right counting brace depth and try to parse every
//     substring that closes back to depth zero.
//
// Most candidate substrings are not JSON at all, so parse failures are
// skipped silently rather than surfaced.
func ExtractJSONValues(text string) []interface{} {
	t := strings.TrimSpace(text)
	if t == "" {
		return nil
	}

	if strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[") {
		var v interface{}
		if err := json.Unmarshal([]byte(t), &v); err == nil {
			return []interface{}{v}
		}
	}

	if m := assignmentRe.FindStringSubmatch(t); m != nil {
		var v interface{}
		if err := json.Unmarshal([]byte(m[1]), &v); err == nil {
			return []interface{}{v}
		}
	}

	return scanBraceBlocks(t)
}

// scanBraceBlocks walks the text counting {/} nesting. Brace characters
// inside string literals are counted too; a candidate broken by that simply
// fails to parse and is discarded, which keeps the scan trivial.
func scanBraceBlocks(t string) []interface{} {
	var objs []interface{}

	start := strings.IndexByte(t, '{')
	for start != -1 {
		depth := 0
		closed := false
		for j := start; j < len(t); j++ {
			switch t[j] {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					var v interface{}
					if err := json.Unmarshal([]byte(t[start:j+1]), &v); err == nil {
						objs = append(objs, v)
					}
					next := strings.IndexByte(t[j+1:], '{')
					if next == -1 {
						start = -1
					} else {
						start = j + 1 + next
					}
					closed = true
				}
			}
			if closed {
				break
			}
		}
		if !closed {
			break
		}
	}

	return objs
}
