package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type queryPair struct {
	key   string
	value string
}

// NextPageURL rewrites the page-number query parameter (pageParam, strana
// on sreality) to point at the following page. The current page is read
// from the parameter when present, else assumed equal to pageNum. The
// rewritten URL carries the page parameter first and every other parameter
// in its original order, so the same input always produces the same output.
func NextPageURL(current string, pageNum int, pageParam string) (string, error) {
	u, err := url.Parse(current)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", current, err)
	}

	pairs := splitQuery(u.RawQuery)

	curPage := pageNum
	for _, p := range pairs {
		if p.key == pageParam && p.value != "" {
			if n, err := strconv.Atoi(p.value); err == nil {
				curPage = n
			}
			break
		}
	}

	ordered := []queryPair{{key: pageParam, value: strconv.Itoa(curPage + 1)}}
	for _, p := range pairs {
		if p.key != pageParam {
			ordered = append(ordered, p)
		}
	}

	u.RawQuery = encodeQuery(ordered)
	return u.String(), nil
}

// splitQuery keeps parameter order and blank values, which url.Values
// throws away.
func splitQuery(raw string) []queryPair {
	if raw == "" {
		return nil
	}
	var pairs []queryPair
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		k, err := url.QueryUnescape(key)
		if err != nil {
			k = key
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			v = value
		}
		pairs = append(pairs, queryPair{key: k, value: v})
	}
	return pairs
}

func encodeQuery(pairs []queryPair) string {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}

var nextLabelRe = regexp.MustCompile(`(?i)(^|\s)(next|další|další »|›|»)(\s|$)`)

// FindNextLink hunts the parsed page for a next-page affordance. Used only
// when the deterministic parameter rewrite cannot be formed. Priority:
// link[rel=next], a[rel=next], anchors labeled like "next page", anchors
// whose class or href smells like pagination.
func FindNextLink(doc *goquery.Document, current string) string {
	base, err := url.Parse(current)
	if err != nil {
		return ""
	}

	resolve := func(href string) string {
		ref, err := url.Parse(href)
		if err != nil {
			return ""
		}
		return base.ResolveReference(ref).String()
	}

	var found string

	doc.Find("link[rel]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		href, ok := s.Attr("href")
		if ok && strings.Contains(strings.ToLower(rel), "next") && href != "" {
			found = resolve(href)
			return false
		}
		return true
	})
	if found != "" {
		return found
	}

	doc.Find("a[rel]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		href, ok := s.Attr("href")
		if ok && strings.Contains(strings.ToLower(rel), "next") && href != "" {
			found = resolve(href)
			return false
		}
		return true
	})
	if found != "" {
		return found
	}

	doc.Find("a[href]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		label := s.AttrOr("aria-label", "")
		if label == "" {
			label = s.AttrOr("title", "")
		}
		if label == "" {
			label = s.Text()
		}
		label = strings.TrimSpace(label)
		if label != "" && nextLabelRe.MatchString(label) {
			found = resolve(s.AttrOr("href", ""))
			return false
		}
		return true
	})
	if found != "" {
		return found
	}

	doc.Find("a[href]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		href := s.AttrOr("href", "")
		cls := strings.ToLower(s.AttrOr("class", ""))
		lowHref := strings.ToLower(href)
		if strings.Contains(cls, "next") || strings.Contains(cls, "paging") || strings.Contains(cls, "pager") ||
			strings.Contains(lowHref, "strana") || strings.Contains(lowHref, "page=") {
			if resolved := resolve(href); resolved != "" && resolved != current {
				found = resolved
				return false
			}
		}
		return true
	})

	return found
}
