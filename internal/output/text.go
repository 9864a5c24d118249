package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/leilao/internal/domain"
)

// TextWriter renders reports and property lists for a terminal. Other values
// fall back to indented JSON.
type TextWriter struct {
	w *bufio.Writer
}

// NewTextWriter creates a text writer.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: bufio.NewWriter(w)}
}

// Write renders data immediately.
func (w *TextWriter) Write(data any) error {
	switch v := data.(type) {
	case *domain.Report:
		w.report(v)
	case []domain.PropertySummary:
		w.properties(v)
	default:
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return err
		}
		w.w.Write(out)
		w.w.WriteString("\n")
	}
	return w.w.Flush()
}

// Close flushes the writer.
func (w *TextWriter) Close() error {
	return w.w.Flush()
}

func (w *TextWriter) report(r *domain.Report) {
	fmt.Fprintf(w.w, "%s/%s  (nota mínima %.1f)\n", r.City, r.State, r.MinScore)
	fmt.Fprintf(w.w, "Encontrados: %d  Analisados: %d  Aprovados: %d  Erros: %d\n",
		r.Found, r.Analyzed, r.Approved, len(r.Errors))
	fmt.Fprintf(w.w, "Sucesso: %s  Aprovação: %s  Melhor nota: %.1f  Nota média: %.1f\n",
		r.Summary.SuccessPct, r.Summary.ApprovalPct, r.Summary.BestScore, r.Summary.MeanScore)
	if !r.Timestamp.IsZero() {
		fmt.Fprintf(w.w, "Gerado %s\n", humanize.Time(r.Timestamp))
	}
	if len(r.TopProperties) > 0 {
		w.w.WriteString("\n")
		w.properties(r.TopProperties)
	}
	if len(r.Errors) > 0 {
		w.w.WriteString("\nErros:\n")
		for _, e := range r.Errors {
			fmt.Fprintf(w.w, "  - %s\n", e.Error())
		}
	}
}

func (w *TextWriter) properties(ps []domain.PropertySummary) {
	if len(ps) == 0 {
		w.w.WriteString("Nenhum imóvel.\n")
		return
	}
	for i, p := range ps {
		fmt.Fprintf(w.w, "%3d. %-15s nota %4.1f  %-24s %s  desconto %s\n",
			i+1, p.ID, p.Score, truncate(p.Comarca, 24), Money(p.MinimumBid), Percent(p.DiscountPercent))
	}
}

// Money renders a numeric fact as Brazilian reais; other text is returned as is.
func Money(s string) string {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	cents := int64(math.Round(f * 100))
	whole := strings.ReplaceAll(humanize.Comma(cents/100), ",", ".")
	return fmt.Sprintf("R$ %s,%02d", whole, cents%100)
}

// Percent appends a percent sign to numeric facts.
func Percent(s string) string {
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return s
	}
	return s + "%"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// expand turns a slice into its elements; any other value is a single item.
func expand(data any) []any {
	rv := reflect.ValueOf(data)
	if rv.Kind() != reflect.Slice {
		return []any{data}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
