package cleaner

import (
	"errors"
	"strings"
	"testing"
)

const detailPage = `<html><head><script>var x = 1;</script><style>.a{}</style></head>
<body>
<div id="header">Caixa</div>
<div id="dadosImovel">
  <h5>RESIDENCIAL JARDIM</h5>
  <p><span>Valor mínimo de venda: R$ 120.000,00</span></p>
  <p><span>Quartos: 2</span></p>
  <script>track()</script>
  <button>Favoritar</button>
</div>
</body></html>`

// --- NoopCleaner ---

func TestNoopCleaner(t *testing.T) {
	c := NewNoop()
	got, err := c.Clean("<p>x</p>")
	if err != nil || got != "<p>x</p>" {
		t.Errorf("Clean() = %q, %v", got, err)
	}
	if c.Name() != "noop" {
		t.Errorf("Name() = %q", c.Name())
	}
}

// --- ByName ---

func TestByName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"", "chain(strip->markdown)"},
		{"Markdown", "chain(strip->markdown)"},
		{"strip", "strip"},
		{" none ", "noop"},
	}
	for _, tt := range tests {
		c, err := ByName(tt.name)
		if err != nil {
			t.Fatalf("ByName(%q) returned unexpected error: %v", tt.name, err)
		}
		if c.Name() != tt.want {
			t.Errorf("ByName(%q).Name() = %q, want %q", tt.name, c.Name(), tt.want)
		}
	}

	if _, err := ByName("readability"); err == nil {
		t.Error("ByName() expected error for unknown cleaner")
	}
}

// --- StripCleaner ---

func TestStripCleaner_RemovesBoilerplate(t *testing.T) {
	got, err := NewStrip().Clean(detailPage)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	for _, unwanted := range []string{"var x", "track()", "Favoritar", ".a{}"} {
		if strings.Contains(got, unwanted) {
			t.Errorf("expected %q removed, got %q", unwanted, got)
		}
	}
	if !strings.Contains(got, "Caixa") || !strings.Contains(got, "Quartos: 2") {
		t.Errorf("expected content kept, got %q", got)
	}
}

func TestStripCleaner_WithRoot(t *testing.T) {
	got, err := NewStrip(WithRoot("#dadosImovel")).Clean(detailPage)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if strings.Contains(got, "Caixa") {
		t.Errorf("expected content outside root dropped, got %q", got)
	}
	if !strings.Contains(got, "RESIDENCIAL JARDIM") {
		t.Errorf("expected root content kept, got %q", got)
	}
	if strings.Contains(got, "track()") {
		t.Errorf("expected script inside root removed, got %q", got)
	}
}

func TestStripCleaner_MissingRootKeepsDocument(t *testing.T) {
	got, err := NewStrip(WithRoot("#nope")).Clean(detailPage)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if !strings.Contains(got, "Caixa") {
		t.Errorf("expected whole body kept, got %q", got)
	}
}

func TestStripCleaner_CustomSelectors(t *testing.T) {
	got, err := NewStrip(WithSelectors("h5")).Clean(detailPage)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if strings.Contains(got, "RESIDENCIAL") {
		t.Errorf("expected h5 removed, got %q", got)
	}
	if !strings.Contains(got, "Favoritar") {
		t.Errorf("expected button kept with custom selectors, got %q", got)
	}
}

// --- MarkdownCleaner ---

func TestMarkdownCleaner_BasicHTML(t *testing.T) {
	got, err := NewMarkdown().Clean(`<h1>Title</h1><p>A paragraph.</p>`)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if !strings.Contains(got, "# Title") {
		t.Errorf("expected markdown heading, got %q", got)
	}
	if !strings.Contains(got, "A paragraph.") {
		t.Errorf("expected paragraph text, got %q", got)
	}
}

func TestMarkdownCleaner_MaxChars(t *testing.T) {
	got, err := NewMarkdown(WithMaxChars(5)).Clean(`<p>ãéíõúxyz</p>`)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if got != "ãéíõú" {
		t.Errorf("Clean() = %q, want %q", got, "ãéíõú")
	}
}

func TestCleanWhitespace(t *testing.T) {
	got := cleanWhitespace("\n\na\n\n\n\nb\n  \n")
	if got != "a\n\nb" {
		t.Errorf("cleanWhitespace() = %q", got)
	}
}

// --- ChainCleaner ---

type failingCleaner struct{}

func (failingCleaner) Clean(string) (string, error) { return "", errors.New("boom") }
func (failingCleaner) Name() string                 { return "failing" }

func TestChainCleaner(t *testing.T) {
	c := Default()
	if c.Name() != "chain(strip->markdown)" {
		t.Errorf("Name() = %q", c.Name())
	}
	got, err := c.Clean(detailPage)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if strings.Contains(got, "<") || !strings.Contains(got, "Valor mínimo de venda") {
		t.Errorf("unexpected output %q", got)
	}
}

func TestChainCleaner_StopsOnError(t *testing.T) {
	_, err := NewChain(NewNoop(), failingCleaner{}).Clean("x")
	if err == nil {
		t.Fatal("expected error")
	}
}
