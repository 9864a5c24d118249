package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"github.com/jmylchreest/leilao/internal/domain"
	"github.com/jmylchreest/leilao/internal/logger"
)

// pageSource renders the listing and detail pages.
type pageSource interface {
	ListingHTML(ctx context.Context, key domain.ListingKey) (string, error)
	DetailHTML(ctx context.Context, key domain.ListingKey, id string) (string, error)
}

// deedSource retrieves deed documents.
type deedSource interface {
	Deed(ctx context.Context, key domain.ListingKey, id string) ([]byte, error)
}

// Caixa scrapes listings, details and deeds from the Caixa sale site.
type Caixa struct {
	pages  pageSource
	deeds  deedSource
	closer func() error
}

// NewCaixa creates a scraper backed by headless Chrome and colly. The browser
// and the deed downloader share one request limiter.
func NewCaixa(cfg Config) *Caixa {
	cfg = cfg.withDefaults()
	limiter := rate.NewLimiter(rate.Every(cfg.RequestInterval), 1)
	browser := NewBrowser(cfg, limiter)
	return &Caixa{
		pages:  browser,
		deeds:  NewDeedDownloader(cfg, limiter),
		closer: browser.Close,
	}
}

// FetchListing scrapes the property list of key.
func (c *Caixa) FetchListing(ctx context.Context, key domain.ListingKey) (domain.Listing, error) {
	html, err := c.pages.ListingHTML(ctx, key)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("listing %s: %w", key, err)
	}
	logger.Info("listing scraped", "key", key.String(), "size", humanize.Bytes(uint64(len(html))))
	return domain.Listing{Key: key, HTML: html, FetchedAt: time.Now()}, nil
}

// FetchDetail scrapes the detail of property id and its deed. A deed that
// cannot be downloaded leaves Detail.Deed empty.
func (c *Caixa) FetchDetail(ctx context.Context, key domain.ListingKey, id string) (domain.Detail, error) {
	html, err := c.pages.DetailHTML(ctx, key, id)
	if err != nil {
		return domain.Detail{}, err
	}
	d := domain.Detail{Key: key, ID: id, HTML: html}

	deed, err := c.deeds.Deed(ctx, key, id)
	switch {
	case err == nil:
		d.Deed = deed
		logger.Debug("deed downloaded", "imovel", id, "size", humanize.Bytes(uint64(len(deed))))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.Detail{}, err
	default:
		logger.Warn("deed unavailable", "imovel", id, "error", err)
	}
	return d, nil
}

// Close releases the browser.
func (c *Caixa) Close() error {
	if c.closer != nil {
		return c.closer()
	}
	return nil
}
