// Package commands implements the CLI commands for leilao.
package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/leilao/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "leilao",
	Short: "Scores foreclosed-property auction listings with an LLM",
	Long: `Leilao scrapes the Caixa property sale site for a state and city,
downloads each property's detail and deed, scores every property against
a flip-investment rubric with an LLM and ranks the approved ones.

Examples:
  # One-shot run, report to a file
  leilao run --estado GO --cidade "RIO VERDE" --min-nota 7 -o automation_result.json

  # Score a single property already scraped
  leilao analyze --estado GO --cidade "RIO VERDE" --id 1444409748105

  # Ranking of every analyzed property
  leilao ranking --min-nota 7 --comarca "rio verde"

  # HTTP API
  leilao serve --addr :8000`,
	SilenceUsage: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		logger.Init(logger.Options{
			Debug: viper.GetBool("debug"),
			Quiet: viper.GetBool("quiet"),
			JSON:  viper.GetBool("log_json"),
			Level: viper.GetString("log_level"),
		})
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default $HOME/.leilao.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "suppress progress output")
	flags.Bool("log-json", false, "log as JSON")
	flags.String("data-dir", "data", "directory for scraped artifacts and analyses")
	flags.String("cleaner", "markdown", "detail cleaning before scoring: markdown, strip, none")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("quiet", flags.Lookup("quiet"))
	_ = viper.BindPFlag("log_json", flags.Lookup("log-json"))
	_ = viper.BindPFlag("data_dir", flags.Lookup("data-dir"))
	_ = viper.BindPFlag("cleaner", flags.Lookup("cleaner"))

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("data_dir", "data")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("provider", "")
	viper.SetDefault("cleaner", "markdown")
	viper.SetDefault("max_retries", 2)
	viper.SetDefault("deed_max_chars", 1500)
	viper.SetDefault("reference_max_chars", 20000)
	viper.SetDefault("analysis_delay", 2*time.Second)
	viper.SetDefault("timeouts.listing", 5*time.Minute)
	viper.SetDefault("timeouts.details", time.Hour)
	viper.SetDefault("timeouts.scorer", 5*time.Minute)
	viper.SetDefault("scraper.headless", true)
	viper.SetDefault("scraper.request_interval", 2*time.Second)
	viper.SetDefault("scraper.step_delay", 3*time.Second)
	viper.SetDefault("scraper.page_timeout", 2*time.Minute)
	viper.SetDefault("ocr.language", "por")
	viper.SetDefault("ocr.max_pages", 10)
	viper.SetDefault("server.addr", ":8000")
}

func initConfig() {
	// .env is optional.
	_ = godotenv.Load()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".leilao")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("LEILAO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logError("reading config: %v", err)
		}
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
