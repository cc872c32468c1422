// Package identity derives a stable identity and a canonical detail URL
// for scraped listings, from whatever subset of fields each record carries.
package identity

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/yogiovic/sreality-cron-querybot/config"
	"github.com/yogiovic/sreality-cron-querybot/models"
)

// Field priority for direct detail links on a result object.
var urlFields = []string{"seoUrl", "seo_url", "seoUri", "url", "canonical", "permalink", "href"}

// Sub-objects that sometimes carry the link one level down.
var urlSubObjects = []string{"seo", "link"}
var nestedURLFields = []string{"url", "href", "seoUrl"}

// Key returns the cross-crawl identity of a listing: content hash first,
// then provider id, then SEO path. Empty when the record carries none of
// them, in which case it cannot be tracked across cycles.
func Key(l models.Listing) string {
	for _, field := range []string{"hash", "id", "seoUrl"} {
		if v := l.Str(field); v != "" {
			return v
		}
	}
	return ""
}

// Resolver reconstructs canonical detail URLs using one site's
// conventions: base domain, detail route, and category slug mapping.
type Resolver struct {
	site *config.SiteProfile
}

func NewResolver(site *config.SiteProfile) *Resolver {
	return &Resolver{site: site}
}

// Apply resolves the canonical URL and writes it onto the record under
// models.ListingURLField. A pre-existing value is left alone.
func (r *Resolver) Apply(l models.Listing) {
	if l.Str(models.ListingURLField) != "" {
		return
	}
	if u := r.CanonicalURL(l); u != "" {
		l[models.ListingURLField] = u
	}
}

// CanonicalURL derives the listing detail URL. Strategies in order: direct
// URL fields, the same fields nested under seo/link, reconstruction from
// category and locality data, and finally detail route plus raw id.
// Returns "" only when no identifier of any kind is present.
func (r *Resolver) CanonicalURL(l models.Listing) string {
	for _, field := range urlFields {
		if v := l.Str(field); v != "" {
			return r.absolute(v)
		}
	}

	for _, sub := range urlSubObjects {
		nested := l.Sub(sub)
		if nested == nil {
			continue
		}
		for _, field := range nestedURLFields {
			if v := nested.Str(field); v != "" {
				return r.absolute(v)
			}
		}
	}

	id := l.Str("id")
	if id == "" {
		id = l.Str("hash")
	}
	if id == "" {
		return ""
	}

	if path := r.reconstructPath(l, id); path != "" {
		return r.absolute(path)
	}

	return r.absolute(r.site.DetailRoute + "/" + id)
}

// reconstructPath rebuilds the SEO detail path from category and locality
// fields: /detail/<transaction>/<category>/<layout>/<locality>/<id>, each
// descriptive segment independently optional.
func (r *Resolver) reconstructPath(l models.Listing, id string) string {
	var trans, main, sub string

	if cb := l.Sub("categoryTypeCb"); cb != nil {
		trans = Slug(cb.Str("name"))
	}
	if cb := l.Sub("categoryMainCb"); cb != nil {
		main = Slug(cb.Str("name"))
	}
	if cb := l.Sub("categorySubCb"); cb != nil {
		// Flat layouts come through as "3+kk", "2+1" etc. The plus is
		// semantic, not slug noise.
		sub = SlugKeepPlus(cb.Str("name"))
	}

	if singular, ok := r.site.CategorySingulars[main]; ok {
		main = singular
	}

	var city, cityPart, street string
	if loc := l.Sub("locality"); loc != nil {
		city = Slug(firstOf(loc, "citySeoName", "city"))
		cityPart = Slug(firstOf(loc, "cityPartSeoName", "cityPart"))
		street = Slug(firstOf(loc, "streetSeoName", "street"))
	}

	var locParts []string
	for _, p := range []string{city, cityPart, street} {
		if p != "" {
			locParts = append(locParts, p)
		}
	}

	pieces := []string{strings.Trim(r.site.DetailRoute, "/")}
	for _, p := range []string{trans, main, sub} {
		if p != "" {
			pieces = append(pieces, p)
		}
	}
	if len(locParts) > 0 {
		pieces = append(pieces, strings.Join(locParts, "-"))
	}
	pieces = append(pieces, id)

	return "/" + strings.Join(pieces, "/")
}

func (r *Resolver) absolute(ref string) string {
	if strings.HasPrefix(ref, "http") {
		return ref
	}
	base, err := url.Parse(r.site.BaseURL)
	if err != nil {
		return ref
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}

func firstOf(l models.Listing, keys ...string) string {
	for _, key := range keys {
		if v := l.Str(key); v != "" {
			return v
		}
	}
	return ""
}

var (
	nonSlugRe     = regexp.MustCompile(`[^a-z0-9\-\s]`)
	nonSlugPlusRe = regexp.MustCompile(`[^a-z0-9+\s]`)
	spacesRe      = regexp.MustCompile(`\s+`)

	stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Slug lowercases, strips diacritics (Žižkov -> zizkov), and collapses
// whitespace to dashes.
func Slug(s string) string {
	s = fold(s)
	s = strings.ReplaceAll(s, "&", "a")
	s = nonSlugRe.ReplaceAllString(s, "")
	s = spacesRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// SlugKeepPlus is Slug with '+' retained, so layout tokens like "3+kk"
// survive intact.
func SlugKeepPlus(s string) string {
	s = fold(s)
	s = nonSlugPlusRe.ReplaceAllString(s, "")
	s = spacesRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if out, _, err := transform.String(stripMarks, s); err == nil {
		return out
	}
	return s
}
