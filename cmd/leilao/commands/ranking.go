package commands

import (
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/leilao/internal/output"
	"github.com/jmylchreest/leilao/internal/ranking"
)

var rankingCmd = &cobra.Command{
	Use:   "ranking",
	Short: "Rank every analyzed property",
	Long: `List persisted analyses filtered by minimum score and comarca, best
score first.

Examples:
  leilao ranking --min-nota 7
  leilao ranking --comarca "rio verde" --max-results 20 --format json`,
	RunE: runRanking,
}

func init() {
	rootCmd.AddCommand(rankingCmd)

	flags := rankingCmd.Flags()
	flags.Float64("min-nota", 0, "minimum final score (inclusive)")
	flags.Int("max-results", ranking.DefaultMaxResults, "maximum properties returned")
	flags.String("comarca", "", "comarca substring filter (case-insensitive)")
	flags.String("format", "text", "output format: text, json, jsonl, yaml")
}

func runRanking(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	q := ranking.NewQuery()
	q.MinScore, _ = flags.GetFloat64("min-nota")
	q.MaxResults, _ = flags.GetInt("max-results")
	q.Comarca, _ = flags.GetString("comarca")
	formatStr, _ := flags.GetString("format")

	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return err
	}

	res, err := ranking.New(openStore()).Query(q)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatText:
		logInfo("%s of %s analyzed properties match", humanize.Comma(int64(res.Returned)), humanize.Comma(int64(res.Total)))
		return output.Render(os.Stdout, format, res.Properties)
	case output.FormatJSONL:
		return output.Render(os.Stdout, format, res.Properties)
	default:
		return output.Render(os.Stdout, format, res)
	}
}
