package scorer

import (
	"fmt"
	"strings"

	"github.com/jmylchreest/leilao/internal/domain"
	"github.com/jmylchreest/leilao/internal/logger"
)

// DetailPrefix introduces the property description in the user message.
const DetailPrefix = "Esta é a descrição resumida do imóvel: "

// DeedUnavailable replaces the deed text when no deed could be read.
const DeedUnavailable = "Matrícula indisponível: o texto da matrícula não pôde ser extraído."

const referenceUnavailable = "Edital não fornecido. Trate as regras do edital como \"Não informado\"."

const systemPromptHeader = `Tarefa:
Analise o edital, o texto da matrícula do imóvel e uma descrição resumida para classificar a atratividade do imóvel para revenda em até 6 meses (flip).
Extraia os fatos relevantes, cite onde encontrou cada dado, atribua notas (0-10) a 5 critérios e calcule a nota final.

Quando algo não constar, escreva "Não informado" (sem inferir).
Cite as fontes como "Edital pág. X", "Matrícula AV-nº" ou "Anúncio do item".

Critérios (use exatamente estes nomes e pesos, nesta ordem; nota 0-10, justificativa de 2 a 4 linhas, fontes):
`

const systemPromptFooter = `
Nota final: média ponderada com os pesos acima, com 1 casa decimal.
Liste 2 riscos práticos, cada um com fonte, e 2 próximos passos objetivos.

A resposta deve ser SOMENTE um objeto JSON com este esquema:

{
  "property": {
    "empreendimento": "", "matricula": "", "oficio": "", "comarca": "",
    "condominio": "", "apartamento": "", "quartos": "", "tipologia": "",
    "area_privativa_m2": 0, "avaliacao": 0, "valor_minimo": 0, "desconto_percent": 0
  },
  "criteria": [%s
  ],
  "final_score": {"method": "weighted_average", "value": 0.0},
  "risks": [{"description": "", "source": ""}],
  "next_steps": [""]
}
`

// SystemPrompt returns the rubric instructions sent with every scoring call.
func SystemPrompt() string {
	var sb strings.Builder
	sb.WriteString(systemPromptHeader)
	entries := make([]string, 0, len(domain.Rubric))
	for i, c := range domain.Rubric {
		fmt.Fprintf(&sb, "%d. %s (peso %.0f%%)\n", i+1, c.Name, c.Weight*100)
		entries = append(entries, fmt.Sprintf(
			"\n    {\"name\": %q, \"weight\": %.2f, \"score\": 0, \"justification\": \"\", \"sources\": []}",
			c.Name, c.Weight))
	}
	fmt.Fprintf(&sb, systemPromptFooter, strings.Join(entries, ","))
	return sb.String()
}

// ComposeInput joins the cleaned detail text with the deed text, or the
// unavailable placeholder when deed is empty.
func ComposeInput(detail, deed string) string {
	var sb strings.Builder
	sb.WriteString(DetailPrefix)
	sb.WriteString(detail)
	sb.WriteString("\n\n## Matrícula\n")
	if strings.TrimSpace(deed) == "" {
		sb.WriteString(DeedUnavailable)
	} else {
		sb.WriteString(deed)
	}
	return sb.String()
}

// BuildUserMessage appends the reference notice to the property input.
func BuildUserMessage(input string, ref *ReferenceDocument) string {
	var sb strings.Builder
	sb.WriteString(input)
	sb.WriteString("\n\n## Edital")
	if ref.Available() {
		if ref.Name != "" {
			sb.WriteString(" (")
			sb.WriteString(ref.Name)
			sb.WriteString(")")
		}
		sb.WriteString("\n")
		sb.WriteString(ref.Text)
	} else {
		sb.WriteString("\n")
		sb.WriteString(referenceUnavailable)
	}
	return sb.String()
}

// Truncate returns at most maxChars runes of s. maxChars <= 0 means no limit.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	logger.Debug("text truncated",
		"original_chars", len(r),
		"max_chars", maxChars)
	return string(r[:maxChars])
}
