package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/leilao/internal/api"
	"github.com/jmylchreest/leilao/internal/logger"
	"github.com/jmylchreest/leilao/internal/ranking"
	"github.com/jmylchreest/leilao/internal/task"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Start the HTTP API. Analyses submitted with POST /analyze run in the
background; poll GET /status/{task_id} and fetch GET /result/{task_id}.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.String("addr", ":8000", "listen address")
	_ = viper.BindPFlag("server.addr", flags.Lookup("addr"))
}

func runServe(*cobra.Command, []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := openStore()
	p, sc, err := newPipeline(ctx, store)
	if err != nil {
		logger.Error("failed to set up pipeline", "error", err)
		return err
	}
	defer sc.Close()

	registry := task.NewRegistry(p, store)

	cfg := api.DefaultConfig()
	cfg.Addr = viper.GetString("server.addr")
	logger.Info("serving", "addr", cfg.Addr, "data_dir", store.Root())
	return api.New(registry, ranking.New(store), cfg).ListenAndServe(ctx)
}
