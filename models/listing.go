package models

import (
	"math"
	"strconv"
)

// ListingURLField is the field the canonical detail URL is written to.
// A value already present there is never overwritten.
const ListingURLField = "listingUrl"

// Listing is one scraped result entry. Sreality embeds result objects with
// no stable schema, so the record stays a generic map and all field access
// goes through optional lookups.
type Listing map[string]interface{}

// Str returns the value under key rendered as a string. Numbers are
// formatted without an exponent (an id of 123 comes back as "123", not
// "1.23e+02"); missing keys, nulls and composite values yield "".
func (l Listing) Str(key string) string {
	return Stringify(l[key])
}

// Sub returns a nested object under key, or nil.
func (l Listing) Sub(key string) Listing {
	if m, ok := l[key].(map[string]interface{}); ok {
		return Listing(m)
	}
	return nil
}

// Name returns the listing headline, trying the field names observed on
// sreality result objects.
func (l Listing) Name() string {
	for _, key := range []string{"name", "title", "headline"} {
		if v := l.Str(key); v != "" {
			return v
		}
	}
	return ""
}

// PriceLabel returns the best available price field as text.
func (l Listing) PriceLabel() string {
	for _, key := range []string{"priceSummaryCzk", "priceCzk", "price"} {
		if v := l.Str(key); v != "" {
			return v
		}
	}
	return ""
}

// URL returns the canonical detail URL injected by the identity resolver,
// or "" when resolution found nothing to work with.
func (l Listing) URL() string {
	return l.Str(ListingURLField)
}

// Stringify renders a decoded JSON scalar as a string.
func Stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == math.Trunc(val) && !math.IsInf(val, 0) {
			return strconv.FormatFloat(val, 'f', 0, 64)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
