package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"taskdeck/internal/bot"
	"taskdeck/internal/logger"
	"taskdeck/internal/model"
	"taskdeck/internal/service"
	"taskdeck/internal/view"
	"taskdeck/internal/web"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var configPath string
	rootCmd := &cobra.Command{
		Use:           "taskdeck",
		Short:         "taskdeck keeps a local view of your remote todo list in sync",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				return os.Setenv("TASKDECK_CONFIG", configPath)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (overrides TASKDECK_CONFIG)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(toggleCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the session with reminders, auto-refresh and the configured adapters",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				log.Fatalf("%v", err)
			}
			defer a.close()

			if err := a.session.Start(ctx); err != nil {
				return fmt.Errorf("%w (log in with `taskdeck login <token>`)", err)
			}

			errCh := make(chan error, 2)
			if a.cfg.TelegramToken != "" && a.cfg.TelegramChatID != 0 {
				telegramBot, err := bot.New(a.cfg.TelegramToken, a.cfg.TelegramChatID, a.session, time.Local)
				if err != nil {
					return fmt.Errorf("bot: %w", err)
				}
				a.notifier.attach(telegramBot)
				go func() { errCh <- telegramBot.Start(ctx) }()
			}
			if a.cfg.ListenAddr != "" {
				srv := web.NewServer(a.session, a.registry)
				go func() { errCh <- srv.Serve(ctx, a.cfg.ListenAddr) }()
			}

			logger.Info(ctx, "taskdeck started", "api", a.cfg.APIBaseURL)
			var runErr error
			select {
			case <-ctx.Done():
			case runErr = <-errCh:
				if errors.Is(runErr, context.Canceled) {
					runErr = nil
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := a.session.Shutdown(shutdownCtx); err != nil {
				logger.Warn(ctx, "jobs still running at shutdown", "err", err)
			}
			logger.Info(ctx, "shutdown complete")
			return runErr
		},
	}
}

func listCmd() *cobra.Command {
	var (
		status string
		search string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, ok := view.ParseStatusFilter(status)
			if !ok {
				return fmt.Errorf("unknown status %q: use all, completed or pending", status)
			}
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			tasks := a.session.FilteredTasks(search, filter)
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(tasks)
			}
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No tasks found")
				return nil
			}
			now := time.Now()
			for _, t := range tasks {
				fmt.Fprintln(out, taskLine(t, a.session.Progress(t), now))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "all", "Filter tasks (all|completed|pending)")
	cmd.Flags().StringVarP(&search, "search", "q", "", "Match title or category")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")
	return cmd
}

func taskLine(t model.Task, p view.Progress, now time.Time) string {
	var b strings.Builder
	mark := " "
	if t.Completed {
		mark = "x"
	}
	fmt.Fprintf(&b, "%5s [%s] %s (%s)", "#"+t.ID.String(), mark, t.Title, t.Category.Label())
	if t.HasDueDate() {
		fmt.Fprintf(&b, " due %s", t.DueDate.In(time.Local).Format("2006-01-02 15:04"))
		if t.Overdue(now) {
			b.WriteString(" OVERDUE")
		}
	}
	if label := t.ReminderLabel(); label != "" {
		fmt.Fprintf(&b, " remind %s", label)
	}
	if p.Visible() {
		fmt.Fprintf(&b, " %d/%d", p.Done, p.Total)
	}
	return b.String()
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show task counters and the category distribution",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			agg := a.session.Aggregates()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total: %d  Completed: %d  Pending: %d\n", agg.Total, agg.Completed, agg.Pending)
			if agg.Empty() {
				fmt.Fprintln(out, "No Data")
				return nil
			}
			for _, c := range agg.ByCategory {
				if c.Count > 0 {
					fmt.Fprintf(out, "  %-9s %d\n", c.Category.Label(), c.Count)
				}
			}
			return nil
		},
	}
}

func toggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle [id]",
		Short: "Flip the completion state of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.ParseTaskID(args[0])
			if err != nil {
				return err
			}
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.session.ToggleComplete(cmd.Context(), id); err != nil {
				return errors.New(service.UserMessage(err))
			}
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	var outFile string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write tasks as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			var w io.Writer = cmd.OutOrStdout()
			if outFile != "" {
				f, err := os.Create(outFile)
				if err != nil {
					return fmt.Errorf("create %q: %w", outFile, err)
				}
				defer f.Close()
				w = f
			}
			return a.session.Export(w)
		},
	}
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "Output file path (default stdout)")
	return cmd
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Create tasks from a JSON array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %q: %w", args[0], err)
			}
			defer f.Close()

			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.session.Import(cmd.Context(), f)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "created %d, failed %d\n", report.Created, report.Failed)
			for _, msg := range report.Errors {
				fmt.Fprintln(out, "  "+msg)
			}
			if err != nil {
				return errors.New(service.UserMessage(err))
			}
			return nil
		},
	}
}

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [token]",
		Short: "Store the bearer token used against the task API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			return a.session.Login(cmd.Context(), args[0])
		},
	}
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token and the reminder history",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			return a.session.Logout(cmd.Context())
		},
	}
}

// loadApp builds the app and fills the cache once for a one-shot command.
func loadApp(ctx context.Context) (*app, error) {
	a, err := newApp(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.session.Load(ctx); err != nil {
		a.close()
		return nil, errors.New(service.UserMessage(err))
	}
	return a, nil
}
