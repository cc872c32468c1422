package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/yogiovic/sreality-cron-querybot/config"
	"github.com/yogiovic/sreality-cron-querybot/identity"
	"github.com/yogiovic/sreality-cron-querybot/models"
	"github.com/yogiovic/sreality-cron-querybot/storage"
)

// Crawler walks one paginated search result set, extracting listings from
// each page's embedded JSON state. It holds no per-crawl state and is safe
// for concurrent crawls.
type Crawler struct {
	fetcher  *Fetcher
	site     *config.SiteProfile
	resolver *identity.Resolver
}

func NewCrawler(fetcher *Fetcher, site *config.SiteProfile) *Crawler {
	return &Crawler{
		fetcher:  fetcher,
		site:     site,
		resolver: identity.NewResolver(site),
	}
}

// crawlState is scoped to one paginated crawl and dies with it.
type crawlState struct {
	current string
	pageNum int
	fetched int
	results []models.Listing
	seen    map[string]struct{}
}

// Crawl enumerates the result set from startURL page by page, up to
// maxPages. Aggregation order is page order then in-page order; duplicate
// identities within the crawl are suppressed, first occurrence wins.
// A non-nil artifacts store receives raw pages, script candidates and
// extracted JSON for this crawl only; nil disables collection.
//
// The loop stops when no next URL resolves, the next URL equals the
// current one, the page cap is hit, or a fetch fails. On fetch failure the
// listings already collected are returned alongside the error, never
// discarded; the caller decides whether a partial crawl is usable.
func (c *Crawler) Crawl(ctx context.Context, startURL string, maxPages int, artifacts storage.ArtifactStore) ([]models.Listing, error) {
	state := &crawlState{
		current: startURL,
		pageNum: 1,
		seen:    make(map[string]struct{}),
	}

	var crawlErr error

	for state.current != "" && state.pageNum <= maxPages {
		html, err := c.fetcher.FetchPage(ctx, state.current)
		if err != nil {
			log.Printf("Stopping pagination on page %d: %v", state.pageNum, err)
			crawlErr = err
			break
		}
		saveArtifact(ctx, artifacts, fmt.Sprintf("page_raw_p%d.html", state.pageNum), []byte(html))

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			log.Printf("Stopping pagination on page %d: parse: %v", state.pageNum, err)
			crawlErr = &FetchError{URL: state.current, Err: err}
			break
		}

		pageListings := c.extractPage(ctx, doc, state.pageNum, artifacts)
		c.accumulate(state, pageListings)
		state.fetched++

		next, err := NextPageURL(state.current, state.pageNum, c.site.PageParam)
		if err != nil {
			// Deterministic rewrite impossible for this URL shape; fall
			// back to pagination affordances in the markup.
			next = FindNextLink(doc, state.current)
		}

		if next == "" {
			log.Printf("No next page found after page %d", state.pageNum)
			break
		}
		if next == state.current {
			log.Printf("Next page URL equals current, stopping to avoid a loop")
			break
		}

		state.current = next
		state.pageNum++
	}

	for _, listing := range state.results {
		c.resolver.Apply(listing)
	}

	if artifacts != nil && len(state.results) > 0 {
		if data, err := json.MarshalIndent(state.results, "", "  "); err == nil {
			saveArtifact(ctx, artifacts, "results.json", data)
		}
	}

	log.Printf("Crawl of %s finished: %d pages, %d listings", startURL, state.fetched, len(state.results))
	return state.results, crawlErr
}

// extractPage runs the candidate scan, JSON heuristics and result locator
// over one page. Finding nothing is not an error; it just means zero
// listings for this page.
func (c *Crawler) extractPage(ctx context.Context, doc *goquery.Document, pageNum int, artifacts storage.ArtifactStore) []models.Listing {
	candidates := ScriptCandidates(doc, c.site.ScriptKeywords)

	var lists [][]interface{}
	for i, blob := range candidates {
		saveArtifact(ctx, artifacts, fmt.Sprintf("script_candidate_p%d_%d.txt", pageNum, i), []byte(blob))
		for _, value := range ExtractJSONValues(blob) {
			lists = append(lists, FindResultLists(value)...)
		}
	}

	listings := BestResultList(lists)
	log.Printf("Page %d: %d script candidate(s), %d result list(s), %d listings",
		pageNum, len(candidates), len(lists), len(listings))

	if artifacts != nil && len(listings) > 0 {
		if data, err := json.MarshalIndent(listings, "", "  "); err == nil {
			saveArtifact(ctx, artifacts, fmt.Sprintf("results_p%d.json", pageNum), data)
		}
	}

	return listings
}

func (c *Crawler) accumulate(state *crawlState, listings []models.Listing) {
	for _, listing := range listings {
		key := identity.Key(listing)
		if key == "" {
			// Cannot be tracked across cycles; kept in output, excluded
			// from dedupe.
			log.Printf("Warning: listing %q has no derivable identity", listing.Name())
			state.results = append(state.results, listing)
			continue
		}
		if _, dup := state.seen[key]; dup {
			continue
		}
		state.seen[key] = struct{}{}
		state.results = append(state.results, listing)
	}
}

func saveArtifact(ctx context.Context, store storage.ArtifactStore, name string, data []byte) {
	if store == nil {
		return
	}
	if err := store.Put(ctx, name, data); err != nil {
		log.Printf("Warning: failed to save artifact %s: %v", name, err)
	}
}
