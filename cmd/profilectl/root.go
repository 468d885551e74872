package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hitoshi/profilegate/client"
	"github.com/hitoshi/profilegate/internal/logger"
)

// rootOptions は全サブコマンド共通のフラグ。
type rootOptions struct {
	baseURL  string
	timeout  time.Duration
	logLevel string
}

// Execute はコマンドライン引数を解析してサブコマンドを実行する。
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "profilectl",
		Short:         "profilegate client",
		Long:          `profilectl signs in to a profilegate server, mounts the protected dashboard and edits the profile.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.SetupDefault(cmd.ErrOrStderr(), logger.ParseLevel(opts.logLevel))

			cfg := client.DefaultConfig()
			cfg.BaseURL = opts.baseURL
			cfg.Timeout = opts.timeout
			if err := client.Init(cfg); err != nil && !errors.Is(err, client.ErrAlreadyInitialized) {
				return err
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", envOr("PROFILEGATE_URL", client.DefaultConfig().BaseURL), "server base URL")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-request timeout")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newDashboardCmd(),
		newSignUpCmd(),
		newRecoverCmd(),
		newResetPasswordCmd(),
		newOAuthURLCmd(),
	)
	return cmd
}

// printNavigator は画面遷移の指示を端末に表示する。
type printNavigator struct {
	w io.Writer
}

func (n printNavigator) Replace(path string) {
	fmt.Fprintf(n.w, "-> %s\n", path)
}

func (n printNavigator) Assign(url string) {
	fmt.Fprintf(n.w, "open %s\n", url)
}

// actions は共有Providerと、それを使うDispatcherとWatcherをまとめる。
type actions struct {
	provider   *client.Provider
	nav        printNavigator
	watcher    *client.Watcher
	dispatcher *client.Dispatcher
}

func newActions(cmd *cobra.Command) (*actions, error) {
	p, err := client.Default()
	if err != nil {
		return nil, err
	}
	nav := printNavigator{w: cmd.OutOrStdout()}
	w := client.NewWatcher(p, nav)
	return &actions{
		provider:   p,
		nav:        nav,
		watcher:    w,
		dispatcher: client.NewDispatcher(p, nav, client.WithWatcher(w)),
	}, nil
}

// report はOutcomeを表示し、失敗の場合はエラーを返す。
func report(w io.Writer, out client.Outcome) error {
	if out.Kind == client.OutcomeFailure {
		return errors.New(out.Message)
	}
	if out.Message != "" {
		fmt.Fprintln(w, out.Message)
	}
	return nil
}

// waitChecked はマウント直後のセッション確認を待つ。
func waitChecked(ctx context.Context, m *client.Mount) error {
	select {
	case <-m.Checked():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
