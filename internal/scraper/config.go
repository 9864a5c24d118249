// Package scraper drives the Caixa property sale site: the search form flow
// that yields the listing, the per-property detail panel and the deed PDF.
package scraper

import (
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://venda-imoveis.caixa.gov.br"
	searchPath     = "/sistema/busca-imovel.asp"

	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	acceptLanguage   = "pt-BR,pt;q=0.9,en;q=0.5"
)

// Page elements of the search flow.
const (
	selState   = "#cmb_estado"
	selCity    = "#cmb_cidade"
	btnNext0   = "#btn_next0"
	btnNext1   = "#btn_next1"
	selListing = "#listaimoveispaginacao"
	selDetail  = "#dadosImovel"
)

// Config holds scraper settings.
type Config struct {
	BaseURL    string
	Headless   bool
	ChromePath string
	UserAgent  string

	// StepDelay is the pause between form steps; the site drops requests
	// issued faster than a person would click.
	StepDelay time.Duration
	// RequestInterval spaces browser sessions and deed downloads.
	RequestInterval time.Duration
	PageTimeout     time.Duration
	DeedTimeout     time.Duration
	MaxDeedBytes    int
}

// DefaultConfig returns the default scraper settings.
func DefaultConfig() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		Headless:        true,
		UserAgent:       defaultUserAgent,
		StepDelay:       3 * time.Second,
		RequestInterval: 2 * time.Second,
		PageTimeout:     2 * time.Minute,
		DeedTimeout:     time.Minute,
		MaxDeedBytes:    20 << 20,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.RequestInterval <= 0 {
		c.RequestInterval = d.RequestInterval
	}
	if c.PageTimeout <= 0 {
		c.PageTimeout = d.PageTimeout
	}
	if c.DeedTimeout <= 0 {
		c.DeedTimeout = d.DeedTimeout
	}
	if c.MaxDeedBytes <= 0 {
		c.MaxDeedBytes = d.MaxDeedBytes
	}
	return c
}

// SearchURL returns the search form address.
func (c Config) SearchURL() string {
	return strings.TrimRight(c.BaseURL, "/") + searchPath
}

// DeedURL returns the address of the deed PDF of a property.
func DeedURL(baseURL, state, id string) string {
	return strings.TrimRight(baseURL, "/") + "/editais/matricula/" + strings.ToUpper(state) + "/" + id + ".pdf"
}
