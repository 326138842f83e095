// legacy-import 将旧系统导出的 SQLite 装箱单导入当前数据库。
// 按发票导入，重复执行只会更新已有记录。
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/bitfantasy/nimo-trade/internal/config"
	"github.com/bitfantasy/nimo-trade/internal/database"
	"github.com/bitfantasy/nimo-trade/internal/export/legacy"
	"github.com/bitfantasy/nimo-trade/internal/export/repository"
	"github.com/bitfantasy/nimo-trade/internal/export/service"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	source string
	userID string
	dryRun bool
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "legacy-import",
		Short: "Import packing lists from the old system's SQLite export",
		Long: `Reads the packing_lists table of the old system's SQLite export and saves
each row through the regular packing list save path, keyed by invoice.
Running it twice updates the rows created by the first run.

Database and logging settings are read from configs/config.yaml and the
environment, as for the server. JWT settings are not needed.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, cmd)
		},
	}
	cmd.Flags().StringVarP(&opts.source, "source", "s", "", "path to the SQLite export (required)")
	cmd.Flags().StringVar(&opts.userID, "user", "legacy-import", "user id recorded as the creator of imported rows")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "report what would be created or updated without writing")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func run(ctx context.Context, opts *options, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadForCLI()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	db, err := database.Open(cfg.Database, cfg.Server.Mode)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if err := database.Migrate(db, cfg.Database, logger); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	src, err := legacy.Open(opts.source)
	if err != nil {
		return err
	}
	defer src.Close()

	repos := repository.NewRepositories(db)
	pls := service.NewPackingListService(repos.Order, repos.Invoice, repos.PackingList, logger.Named("packing"))

	sum, err := legacy.Run(ctx, src, pls, opts.userID, opts.dryRun, logger.Named("legacy"))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.dryRun {
		fmt.Fprintln(out, "dry run, nothing written")
	}
	actions := make([]string, 0, len(sum.Actions))
	for a := range sum.Actions {
		actions = append(actions, a)
	}
	sort.Strings(actions)
	for _, a := range actions {
		fmt.Fprintf(out, "%-16s %d\n", a, sum.Actions[a])
	}
	fmt.Fprintf(out, "%-16s %d\n", "failed", len(sum.Failed))
	for _, id := range sum.Failed {
		fmt.Fprintf(out, "  %s\n", id)
	}
	if len(sum.Failed) > 0 {
		return fmt.Errorf("%d rows could not be imported", len(sum.Failed))
	}
	return nil
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	}
	if cfg.Level != "" {
		lvl, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zapCfg.Level = lvl
	}
	return zapCfg.Build()
}
