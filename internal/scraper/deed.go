package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"github.com/jmylchreest/leilao/internal/domain"
	"github.com/jmylchreest/leilao/internal/logger"
)

var pdfMagic = []byte("%PDF")

// DeedDownloader fetches deed PDFs over plain HTTP with colly.
type DeedDownloader struct {
	cfg     Config
	limiter *rate.Limiter
}

// NewDeedDownloader creates a deed downloader.
func NewDeedDownloader(cfg Config, limiter *rate.Limiter) *DeedDownloader {
	return &DeedDownloader{cfg: cfg.withDefaults(), limiter: limiter}
}

// Deed downloads the deed of property id. A missing deed, or a response that
// is not a PDF, yields domain.ErrNotFound.
func (d *DeedDownloader) Deed(ctx context.Context, key domain.ListingKey, id string) ([]byte, error) {
	url := DeedURL(d.cfg.BaseURL, key.State, id)
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	c := colly.NewCollector(
		colly.UserAgent(d.cfg.UserAgent),
		colly.StdlibContext(ctx),
		colly.MaxBodySize(d.cfg.MaxDeedBytes),
	)
	c.SetRequestTimeout(d.cfg.DeedTimeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/pdf,*/*;q=0.8")
		r.Headers.Set("Accept-Language", acceptLanguage)
		r.Headers.Set("Referer", d.cfg.SearchURL())
	})

	var body []byte
	status := 0
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	logger.Debug("downloading deed", "imovel", id, "url", url)
	err := c.Visit(url)
	switch {
	case status == http.StatusNotFound:
		return nil, fmt.Errorf("deed %s: %w", id, domain.ErrNotFound)
	case err != nil:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: deed %s: %w", domain.ErrScrape, id, err)
	case !bytes.HasPrefix(body, pdfMagic):
		return nil, fmt.Errorf("deed %s is not a PDF: %w", id, domain.ErrNotFound)
	}
	return body, nil
}
