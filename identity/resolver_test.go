package identity

import (
	"testing"

	"github.com/yogiovic/sreality-cron-querybot/config"
	"github.com/yogiovic/sreality-cron-querybot/models"
)

func TestKey_Priority(t *testing.T) {
	cases := []struct {
		name    string
		listing models.Listing
		want    string
	}{
		{"hash wins", models.Listing{"hash": "h1", "id": float64(42), "seoUrl": "/x"}, "h1"},
		{"id second", models.Listing{"id": float64(42), "seoUrl": "/x"}, "42"},
		{"seoUrl last", models.Listing{"seoUrl": "/detail/prodej/byt/praha/42"}, "/detail/prodej/byt/praha/42"},
		{"nothing", models.Listing{"name": "Byt 2+kk"}, ""},
	}
	for _, tc := range cases {
		if got := Key(tc.listing); got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestKey_Deterministic(t *testing.T) {
	l := models.Listing{"hash": "abc", "id": float64(7)}
	first := Key(l)
	for i := 0; i < 5; i++ {
		if got := Key(l); got != first {
			t.Fatalf("key changed between calls: %q vs %q", got, first)
		}
	}
}

func newTestResolver() *Resolver {
	return NewResolver(config.DefaultSiteProfile())
}

func TestCanonicalURL_DirectField(t *testing.T) {
	r := newTestResolver()
	l := models.Listing{"seoUrl": "/detail/prodej/byt/2+kk/praha/123456"}
	want := "https://www.sreality.cz/detail/prodej/byt/2+kk/praha/123456"
	if got := r.CanonicalURL(l); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCanonicalURL_AbsolutePassedThrough(t *testing.T) {
	r := newTestResolver()
	l := models.Listing{"url": "https://www.sreality.cz/detail/987"}
	if got := r.CanonicalURL(l); got != "https://www.sreality.cz/detail/987" {
		t.Fatalf("got %q", got)
	}
}

func TestCanonicalURL_NestedSeoObject(t *testing.T) {
	r := newTestResolver()
	l := models.Listing{
		"id":  float64(55),
		"seo": map[string]interface{}{"url": "/detail/prodej/dum/kladno/55"},
	}
	want := "https://www.sreality.cz/detail/prodej/dum/kladno/55"
	if got := r.CanonicalURL(l); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCanonicalURL_Reconstructed(t *testing.T) {
	r := newTestResolver()
	l := models.Listing{
		"id":             float64(123),
		"categoryTypeCb": map[string]interface{}{"name": "Prodej"},
		"categoryMainCb": map[string]interface{}{"name": "Domy"},
		"locality":       map[string]interface{}{"citySeoName": "praha"},
	}
	// Category main is singularized: domy -> dum.
	want := "https://www.sreality.cz/detail/prodej/dum/praha/123"
	if got := r.CanonicalURL(l); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCanonicalURL_ReconstructedWithLayoutAndDiacritics(t *testing.T) {
	r := newTestResolver()
	l := models.Listing{
		"hash":           "x9",
		"categoryTypeCb": map[string]interface{}{"name": "Prodej"},
		"categoryMainCb": map[string]interface{}{"name": "Byty"},
		"categorySubCb":  map[string]interface{}{"name": "3+kk"},
		"locality": map[string]interface{}{
			"city":     "Kutná Hora",
			"cityPart": "Žižkov",
		},
	}
	want := "https://www.sreality.cz/detail/prodej/byt/3+kk/kutna-hora-zizkov/x9"
	if got := r.CanonicalURL(l); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCanonicalURL_ProfileDrivenSingulars(t *testing.T) {
	site := &config.SiteProfile{
		ID:                "example",
		BaseURL:           "https://listings.example.com",
		PageParam:         "page",
		DetailRoute:       "/detail",
		CategorySingulars: map[string]string{"houses": "house", "flats": "flat"},
	}
	r := NewResolver(site)
	l := models.Listing{
		"id":             float64(123),
		"categoryTypeCb": map[string]interface{}{"name": "Sale"},
		"categoryMainCb": map[string]interface{}{"name": "Houses"},
		"locality":       map[string]interface{}{"city": "Prague"},
	}
	want := "https://listings.example.com/detail/sale/house/prague/123"
	if got := r.CanonicalURL(l); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCanonicalURL_IDOnly(t *testing.T) {
	r := newTestResolver()
	l := models.Listing{"id": float64(777)}
	want := "https://www.sreality.cz/detail/777"
	if got := r.CanonicalURL(l); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCanonicalURL_NothingToWorkWith(t *testing.T) {
	r := newTestResolver()
	if got := r.CanonicalURL(models.Listing{"name": "Byt"}); got != "" {
		t.Fatalf("expected empty url, got %q", got)
	}
}

func TestApply_DoesNotOverwrite(t *testing.T) {
	r := newTestResolver()
	l := models.Listing{"id": float64(1), models.ListingURLField: "https://example.com/kept"}
	r.Apply(l)
	if got := l.URL(); got != "https://example.com/kept" {
		t.Fatalf("pre-existing url overwritten: %q", got)
	}

	bare := models.Listing{"id": float64(2)}
	r.Apply(bare)
	if got := bare.URL(); got != "https://www.sreality.cz/detail/2" {
		t.Fatalf("expected injected url, got %q", got)
	}
}

func TestSlug(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Žižkov", "zizkov"},
		{"Kutná Hora", "kutna-hora"},
		{"Prodej", "prodej"},
		{"Ústí nad Labem", "usti-nad-labem"},
		{"  Praha 5 - Smíchov ", "praha-5---smichov"},
	}
	for _, tc := range cases {
		if got := Slug(tc.in); got != tc.want {
			t.Fatalf("Slug(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSlugKeepPlus(t *testing.T) {
	cases := []struct{ in, want string }{
		{"3+kk", "3+kk"},
		{"2+1", "2+1"},
		{"Atypický", "atypicky"},
	}
	for _, tc := range cases {
		if got := SlugKeepPlus(tc.in); got != tc.want {
			t.Fatalf("SlugKeepPlus(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
