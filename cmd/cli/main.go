package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/possync/internal/domain"
	"github.com/iho/possync/internal/infrastructure/auth"
	"github.com/iho/possync/internal/infrastructure/config"
	"github.com/iho/possync/internal/infrastructure/logger"
	"github.com/iho/possync/internal/infrastructure/postgres"
)

const apiPrefix = "/api/v1/sync"

type options struct {
	baseURL  string
	timeout  time.Duration
	token    string
	userRole string
	shopID   int64
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "possync-cli",
		Short:         "possync CLI tool",
		Long:          `A command line interface for operating the possync synchronization server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the possync API")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	flags.StringVar(&opts.token, "token", os.Getenv("POSSYNC_TOKEN"), "Bearer token (AUTH_ENABLED servers)")
	flags.StringVar(&opts.userRole, "user-role", "admin", "Role sent as user_role when no token is given")
	flags.Int64Var(&opts.shopID, "shop-id", 0, "Shop sent as shop_id when no token is given")

	rootCmd.AddCommand(
		migrateCmd(),
		tokenCmd(),
		consistencyCmd(opts),
		tombstonesCmd(opts),
		pingCmd(opts),
	)

	return rootCmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	withMigrator := func(fn func(*postgres.Migrator) error) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		lg := logger.New(logger.Config{Level: cfg.LogLevel, Format: "console", Output: os.Stderr})
		mg, err := postgres.NewMigrator(cfg.DatabaseURL, cfg.MigrationsPath, lg)
		if err != nil {
			return err
		}
		defer mg.Close()
		return fn(mg)
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(mg *postgres.Migrator) error { return mg.Down(steps) })
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(func(mg *postgres.Migrator) error { return mg.Up() })
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(func(mg *postgres.Migrator) error {
					v, dirty, err := mg.Version()
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %v)\n", v, dirty)
					return nil
				})
			},
		},
	)

	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Bearer token helpers",
	}

	var (
		role      string
		shopID    int64
		actorID   int64
		actorName string
	)

	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue a token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}

			r, err := domain.ParseRole(role)
			if err != nil {
				return err
			}
			scope := domain.Scope{Role: r, Actor: domain.Actor{ID: actorID, Name: actorName}}
			if cmd.Flags().Changed("shop") {
				scope.ShopID = &shopID
			}

			token, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration).Generate(scope)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issue.Flags().StringVar(&role, "role", "agent", "admin or agent")
	issue.Flags().Int64Var(&shopID, "shop", 0, "Shop of an agent token")
	issue.Flags().Int64Var(&actorID, "actor-id", 0, "Actor id carried in the token")
	issue.Flags().StringVar(&actorName, "actor-name", "", "Actor name carried in the token")

	cmd.AddCommand(issue)
	return cmd
}

func consistencyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "consistency",
		Short: "Run the server-side consistency scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			var report struct {
				Consistent              bool              `json:"consistent"`
				UnreconciledOperations  []json.RawMessage `json:"unreconciled_operations"`
				OrphanTrashEntries      []json.RawMessage `json:"orphan_trash_entries"`
				InvalidDeletionRequests []json.RawMessage `json:"invalid_deletion_requests"`
			}
			if err := opts.do(cmd.Context(), http.MethodGet, "/consistency", nil, &report); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "unreconciled operations:   %d\n", len(report.UnreconciledOperations))
			fmt.Fprintf(out, "orphan trash entries:      %d\n", len(report.OrphanTrashEntries))
			fmt.Fprintf(out, "invalid deletion requests: %d\n", len(report.InvalidDeletionRequests))
			if !report.Consistent {
				return errors.New("consistency check FAILED")
			}
			fmt.Fprintln(out, "consistency check PASSED")
			return nil
		},
	}
}

func tombstonesCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tombstones",
		Short: "Tombstone queries",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check CODE...",
		Short: "Report which business codes were deleted on the server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Deleted []string `json:"deleted_code_ops"`
			}
			body := map[string][]string{"code_ops_list": args}
			if err := opts.do(cmd.Context(), http.MethodPost, "/operations/tombstones", body, &resp); err != nil {
				return err
			}
			for _, code := range resp.Deleted {
				fmt.Fprintln(cmd.OutOrStdout(), code)
			}
			return nil
		},
	})

	return cmd
}

func pingCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check server reachability and clock",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Status     string    `json:"status"`
				ServerTime time.Time `json:"server_time"`
				Database   string    `json:"database"`
			}
			if err := opts.do(cmd.Context(), http.MethodGet, "/ping", nil, &resp); err != nil {
				return err
			}
			skew := time.Since(resp.ServerTime).Round(time.Millisecond)
			fmt.Fprintf(cmd.OutOrStdout(), "status=%s database=%s server_time=%s skew=%s\n",
				resp.Status, resp.Database, resp.ServerTime.Format(time.RFC3339), skew)
			return nil
		},
	}
}

// do sends a request to the sync API and decodes a 2xx JSON body into dst.
func (o *options) do(ctx context.Context, method, path string, body, dst any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	u, err := url.Parse(strings.TrimRight(o.baseURL, "/") + apiPrefix + path)
	if err != nil {
		return err
	}
	if o.token == "" {
		q := u.Query()
		q.Set("user_role", o.userRole)
		if o.shopID > 0 {
			q.Set("shop_id", strconv.FormatInt(o.shopID, 10))
		}
		u.RawQuery = q.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if o.token != "" {
		req.Header.Set("Authorization", "Bearer "+o.token)
	}

	resp, err := (&http.Client{Timeout: o.timeout}).Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("server answered %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if dst == nil {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
