package commands

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/benvon/cookmate/internal/database"
	"github.com/benvon/cookmate/internal/middleware"
	"github.com/benvon/cookmate/internal/models"
	"github.com/spf13/cobra"
	"github.com/ulule/limiter/v3"
)

// ratelimitStore is the slice of the rate limit repository the commands use
type ratelimitStore interface {
	List(ctx context.Context) ([]*models.RatelimitConfig, error)
	Set(ctx context.Context, c *models.RatelimitConfig) error
}

// NewRatelimitCmd creates the ratelimit configuration command with list and set subcommands.
func NewRatelimitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Manage rate limit configuration",
		Long:  "List or update the per-scope rate limits (e.g. 5-S, 100-M). Running servers pick up changes within a minute.",
	}
	cmd.AddCommand(newRatelimitListCmd())
	cmd.AddCommand(newRatelimitSetCmd())
	return cmd
}

func newRatelimitListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the rate limit for every scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)
			return listRatelimits(cmd.Context(), cmd.OutOrStdout(), database.NewRatelimitConfigRepository(db))
		},
	}
}

func newRatelimitSetCmd() *cobra.Command {
	var rate, scope string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set the rate limit for a scope",
		Long:  "Update a scope's rate limit (e.g. 5-S, 100-M, 1000-H). Scopes: " + strings.Join(models.RatelimitScopes, ", ") + ".",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)
			return setRatelimit(cmd.Context(), cmd.OutOrStdout(), database.NewRatelimitConfigRepository(db), scope, rate)
		},
	}
	cmd.Flags().StringVar(&rate, "rate", "", "Rate (e.g. 5-S, 100-M, 1000-H) (required)")
	cmd.Flags().StringVar(&scope, "scope", models.RatelimitScopeDefault, "Scope to update")
	return cmd
}

func listRatelimits(ctx context.Context, out io.Writer, store ratelimitStore) error {
	configs, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("list ratelimit config: %w", err)
	}
	stored := make(map[string]string, len(configs))
	for _, c := range configs {
		stored[c.ConfigKey] = c.Rate
	}

	fmt.Fprintln(out, "Rate limit configuration:")
	for _, scope := range models.RatelimitScopes {
		if rate, ok := stored[scope]; ok {
			fmt.Fprintf(out, "  %-8s %s\n", scope, rate)
			continue
		}
		fmt.Fprintf(out, "  %-8s %s (built-in default)\n", scope, middleware.DefaultRateForScope(scope))
	}
	return nil
}

func setRatelimit(ctx context.Context, out io.Writer, store ratelimitStore, scope, rate string) error {
	scope = strings.TrimSpace(scope)
	rate = strings.TrimSpace(rate)
	if rate == "" {
		return fmt.Errorf("--rate is required (e.g. 5-S, 100-M)")
	}
	if !slices.Contains(models.RatelimitScopes, scope) {
		return fmt.Errorf("unknown scope %q (valid: %s)", scope, strings.Join(models.RatelimitScopes, ", "))
	}
	if _, err := limiter.NewRateFromFormatted(rate); err != nil {
		return fmt.Errorf("invalid rate %q: %w", rate, err)
	}

	if err := store.Set(ctx, &models.RatelimitConfig{ConfigKey: scope, Rate: rate}); err != nil {
		return fmt.Errorf("set ratelimit config: %w", err)
	}
	fmt.Fprintf(out, "Rate limit for %s set to %s.\n", scope, rate)
	return nil
}
