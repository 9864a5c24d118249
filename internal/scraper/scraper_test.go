package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmylchreest/leilao/internal/domain"
)

// --- Config ---

func TestDeedURL(t *testing.T) {
	got := DeedURL("https://venda-imoveis.caixa.gov.br/", "df", "8787712345678")
	want := "https://venda-imoveis.caixa.gov.br/editais/matricula/DF/8787712345678.pdf"
	if got != want {
		t.Errorf("DeedURL() = %q, want %q", got, want)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{BaseURL: "http://example.test/"}.withDefaults()
	if cfg.BaseURL != "http://example.test" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.SearchURL() != "http://example.test/sistema/busca-imovel.asp" {
		t.Errorf("SearchURL() = %q", cfg.SearchURL())
	}
	if cfg.UserAgent == "" || cfg.PageTimeout == 0 || cfg.MaxDeedBytes == 0 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestSelectScriptQuotesArguments(t *testing.T) {
	script := selectScript(selCity, `SÃO "JOSÉ"`)
	if !strings.Contains(script, `"#cmb_cidade"`) || !strings.Contains(script, `"SÃO \"JOSÉ\""`) {
		t.Errorf("unexpected script:\n%s", script)
	}
}

// --- DetectBlock ---

func TestDetectBlock(t *testing.T) {
	tests := []struct {
		name    string
		html    string
		blocked bool
	}{
		{"empty", "   ", true},
		{"waf title", "<html><head><title>Request Rejected</title></head><body></body></html>", true},
		{"captcha", `<html><body><div class="g-recaptcha"></div></body></html>`, true},
		{"body marker", "<html><body><p>The requested URL was rejected. Your support ID is 123</p></body></html>", true},
		{"listing", `<html><body><div id="listaimoveispaginacao"><a onclick="detalhe_imovel(123)">x</a></div></body></html>`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, blocked := DetectBlock(tt.html)
			if blocked != tt.blocked {
				t.Errorf("DetectBlock() = (%q, %v), want blocked=%v", reason, blocked, tt.blocked)
			}
			if blocked && reason == "" {
				t.Error("expected a reason for a blocked page")
			}
		})
	}
}

// --- DeedDownloader ---

func newDeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/editais/matricula/DF/100.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.4 deed"))
		case "/editais/matricula/DF/200.pdf":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html>erro</html>"))
		case "/editais/matricula/DF/500.pdf":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDeedDownloader(t *testing.T) {
	srv := newDeedServer(t)
	d := NewDeedDownloader(Config{BaseURL: srv.URL, DeedTimeout: 5 * time.Second}, nil)
	key := domain.ListingKey{State: "df", City: "BRASILIA"}

	body, err := d.Deed(context.Background(), key, "100")
	if err != nil {
		t.Fatalf("Deed() returned unexpected error: %v", err)
	}
	if !strings.HasPrefix(string(body), "%PDF") {
		t.Errorf("unexpected body %q", body)
	}

	tests := []struct {
		id   string
		want error
	}{
		{"300", domain.ErrNotFound},
		{"200", domain.ErrNotFound},
		{"500", domain.ErrScrape},
	}
	for _, tt := range tests {
		if _, err := d.Deed(context.Background(), key, tt.id); !errors.Is(err, tt.want) {
			t.Errorf("Deed(%s) error = %v, want %v", tt.id, err, tt.want)
		}
	}
}

// --- Caixa ---

type fakePages struct {
	listing string
	detail  map[string]string
	err     error
}

func (f *fakePages) ListingHTML(context.Context, domain.ListingKey) (string, error) {
	return f.listing, f.err
}

func (f *fakePages) DetailHTML(_ context.Context, _ domain.ListingKey, id string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	html, ok := f.detail[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	return html, nil
}

type fakeDeeds struct {
	deeds map[string][]byte
	err   error
}

func (f *fakeDeeds) Deed(_ context.Context, _ domain.ListingKey, id string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	if d, ok := f.deeds[id]; ok {
		return d, nil
	}
	return nil, domain.ErrNotFound
}

func TestCaixa_FetchListing(t *testing.T) {
	key := domain.ListingKey{State: "DF", City: "BRASILIA"}
	c := &Caixa{pages: &fakePages{listing: "<div>lista</div>"}, deeds: &fakeDeeds{}}

	l, err := c.FetchListing(context.Background(), key)
	if err != nil {
		t.Fatalf("FetchListing() returned unexpected error: %v", err)
	}
	if l.HTML != "<div>lista</div>" || l.Key != key || l.FetchedAt.IsZero() {
		t.Errorf("unexpected listing %+v", l)
	}

	c.pages = &fakePages{err: domain.ErrScrape}
	if _, err := c.FetchListing(context.Background(), key); !errors.Is(err, domain.ErrScrape) {
		t.Errorf("expected ErrScrape, got %v", err)
	}
}

func TestCaixa_FetchDetail(t *testing.T) {
	key := domain.ListingKey{State: "DF", City: "BRASILIA"}
	c := &Caixa{
		pages: &fakePages{detail: map[string]string{"1": "<p>um</p>", "2": "<p>dois</p>"}},
		deeds: &fakeDeeds{deeds: map[string][]byte{"1": []byte("%PDF-1")}},
	}

	d, err := c.FetchDetail(context.Background(), key, "1")
	if err != nil {
		t.Fatalf("FetchDetail(1) returned unexpected error: %v", err)
	}
	if d.HTML != "<p>um</p>" || !d.HasDeed() {
		t.Errorf("unexpected detail %+v", d)
	}

	d, err = c.FetchDetail(context.Background(), key, "2")
	if err != nil {
		t.Fatalf("FetchDetail(2) returned unexpected error: %v", err)
	}
	if d.HasDeed() {
		t.Error("expected detail without deed")
	}

	if _, err := c.FetchDetail(context.Background(), key, "9"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCaixa_FetchDetailCancelledDuringDeed(t *testing.T) {
	key := domain.ListingKey{State: "DF", City: "BRASILIA"}
	c := &Caixa{
		pages: &fakePages{detail: map[string]string{"1": "<p>um</p>"}},
		deeds: &fakeDeeds{err: context.Canceled},
	}
	if _, err := c.FetchDetail(context.Background(), key, "1"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCaixa_CloseWithoutBrowser(t *testing.T) {
	if err := (&Caixa{}).Close(); err != nil {
		t.Errorf("Close() returned unexpected error: %v", err)
	}
}
