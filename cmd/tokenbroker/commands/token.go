package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/tokenbroker/internal/authn"
	tberrors "github.com/systmms/tokenbroker/internal/errors"
	"github.com/systmms/tokenbroker/pkg/token"
)

type tokenOutput struct {
	AccessToken   string    `json:"accessToken"`
	TokenType     string    `json:"tokenType"`
	ExpiresOn     time.Time `json:"expiresOn"`
	TenantID      string    `json:"tenantId,omitempty"`
	Username      string    `json:"username,omitempty"`
	HomeAccountID string    `json:"homeAccountId,omitempty"`
	RefreshToken  string    `json:"refreshToken,omitempty"`
}

func newTokenOutput(r token.Result) tokenOutput {
	return tokenOutput{
		AccessToken:   r.AccessToken,
		TokenType:     r.TokenType,
		ExpiresOn:     r.ExpiresOn.UTC(),
		TenantID:      r.TenantID,
		Username:      r.Username,
		HomeAccountID: r.HomeAccountID,
		RefreshToken:  r.RefreshToken,
	}
}

func NewTokenCommand(app *App) *cobra.Command {
	var (
		flags               accountFlags
		includeRefreshToken bool
		format              string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print an access token",
		Long: `Authenticate and print the access token.

Examples:
  tokenbroker token --home-account-id <oid>.<tid> -u me@contoso.com
  tokenbroker token --device-code --scope https://management.azure.com/.default
  tokenbroker token --home-account-id <id> --include-refresh-token -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "raw" {
				return tberrors.UserError{
					Message:    fmt.Sprintf("Unknown output format: %s", format),
					Suggestion: "Use -o json or -o raw",
				}
			}
			sess, err := app.Session(cmd)
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			req, err := flags.request(ctx, sess)
			if err != nil {
				return err
			}
			req.IncludeRefreshToken = includeRefreshToken

			res, err := authn.NewService(sess).Authenticate(ctx, req)
			if err != nil {
				return err
			}

			if format == "raw" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), res.AccessToken)
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(newTokenOutput(res))
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&includeRefreshToken, "include-refresh-token", false, "Include the cached refresh token")
	cmd.Flags().StringVarP(&format, "output", "o", "json", "Output format: json or raw")
	return cmd
}
