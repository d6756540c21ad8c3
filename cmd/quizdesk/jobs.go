package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jason-s-yu/quizdesk/internal/cache"
	"github.com/jason-s-yu/quizdesk/internal/database"
	"github.com/jason-s-yu/quizdesk/internal/historian"
	"github.com/jason-s-yu/quizdesk/internal/templates"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the Postgres tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		logger := newLogger(cfg)
		pool, err := database.Connect(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := database.CreateSchema(cmd.Context(), pool); err != nil {
			return err
		}
		logger.Info("schema up to date")
		return nil
	},
}

var historianCmd = &cobra.Command{
	Use:   "historian",
	Short: "Persist queued mutation records to Postgres",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()

		queue := cache.NewMutationQueue(rdb, cfg.MutationQueue)
		svc := historian.New(queue, historian.NewPostgresSink(pool), logger, cfg.HistorianBatchSize, cfg.HistorianFlush)
		logger.Infof("historian reading %s", queue.Name())
		return svc.Run(ctx)
	},
}

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Inspect or edit the checklist template",
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the template tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTemplate(cmd.Context(), func(l *templates.List) error {
			for i, name := range l.Names() {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, name)
			}
			return nil
		})
	},
}

var templateAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Append a task to the template",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTemplate(cmd.Context(), func(l *templates.List) error {
			return l.Add(cmd.Context(), strings.Join(args, " "))
		})
	},
}

var templateRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a task from the template",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTemplate(cmd.Context(), func(l *templates.List) error {
			return l.Remove(cmd.Context(), strings.Join(args, " "))
		})
	},
}

func init() {
	templateCmd.AddCommand(templateListCmd, templateAddCmd, templateRemoveCmd)
}

func withTemplate(ctx context.Context, fn func(*templates.List) error) error {
	cfg := loadConfig()
	st, err := templates.OpenSQLite(ctx, cfg.TemplateDBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	l, err := templates.Load(ctx, st)
	if err != nil {
		return err
	}
	return fn(l)
}
