package httputil

import (
	"net/http"
	"net/url"
	"os"
	"time"
)

// Clients separates the client used against the target site from the one
// used for webhook delivery. The scraping client honors an optional
// SCRAPE_PROXY_URL; webhook traffic always goes direct.
type Clients struct {
	Scraping *http.Client
	Webhook  *http.Client
}

func NewClients(fetchTimeout time.Duration) *Clients {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if proxy := os.Getenv("SCRAPE_PROXY_URL"); proxy != "" {
		if proxyURL, err := url.Parse(proxy); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	return &Clients{
		Scraping: &http.Client{
			Timeout:   fetchTimeout,
			Transport: transport,
		},
		Webhook: &http.Client{Timeout: 10 * time.Second},
	}
}
