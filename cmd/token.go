package cmd

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/telecal/internal/logging"
	"github.com/teemow/telecal/internal/store"
)

func newTokenCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Inspect or remove stored Google credentials",
	}
	cmd.AddCommand(newTokenShowCmd(opts))
	cmd.AddCommand(newTokenDeleteCmd(opts))
	return cmd
}

func newTokenShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <user_id>",
		Short: "Show the stored credential of a chat user (secrets masked)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			st, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore(st, logger)

			cred, err := st.Load(ctx, args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no credential stored for user %s", args[0])
			}
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "user_id\t%s\n", cred.UserID)
			fmt.Fprintf(w, "access_token\t%s\n", logging.SanitizeToken(cred.AccessToken))
			fmt.Fprintf(w, "refresh_token\t%s\n", logging.SanitizeToken(cred.RefreshToken))
			fmt.Fprintf(w, "token_uri\t%s\n", cred.TokenURI)
			fmt.Fprintf(w, "client_id\t%s\n", cred.ClientID)
			fmt.Fprintf(w, "scopes\t%s\n", strings.Join(cred.Scopes, " "))
			fmt.Fprintf(w, "expiry\t%s\n", formatTime(cred.Expiry))
			fmt.Fprintf(w, "updated_at\t%s\n", formatTime(cred.UpdatedAt))
			return w.Flush()
		},
	}
}

func newTokenDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user_id>",
		Short: "Delete the stored credential of a chat user",
		Long: `Delete the stored credential of a chat user. The user is asked to
authorize again on their next /start.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			st, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore(st, logger)

			if err := st.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted credential for user %s\n", args[0])
			return nil
		},
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}
