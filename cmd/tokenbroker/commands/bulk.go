package commands

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/tokenbroker/internal/authn"
	tberrors "github.com/systmms/tokenbroker/internal/errors"
)

func NewBulkTokenCommand(app *App) *cobra.Command {
	var (
		flags     accountFlags
		packageID string
		name      string
		validity  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "bulk-token",
		Short: "Create a bulk enrollment refresh token",
		Long: `Sign in with the device enrollment application and request a bulk
enrollment refresh token for provisioning packages.

Examples:
  tokenbroker bulk-token --home-account-id <oid>.<tid> -u admin@contoso.com
  tokenbroker bulk-token --device-code --name kiosk --validity 168h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if validity < 0 {
				return tberrors.UserError{Message: "--validity must not be negative"}
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

			bulk := authn.BulkRequest{
				Account:      req.Account,
				Environment:  req.Environment,
				Password:     req.Password,
				RefreshToken: req.RefreshToken,
				PackageID:    packageID,
				Name:         name,
			}
			if validity > 0 {
				bulk.ExpiresOn = time.Now().Add(validity)
			}

			out, err := authn.NewService(sess).BulkRefreshToken(ctx, bulk)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				RefreshToken string    `json:"refreshToken"`
				ExpiresOn    time.Time `json:"expiresOn"`
			}{out.RefreshToken, out.ExpiresOn.UTC()})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&packageID, "package-id", "", "Package id (default random)")
	cmd.Flags().StringVar(&name, "name", "", "Package name (default package_<id>)")
	cmd.Flags().DurationVar(&validity, "validity", authn.DefaultBulkValidity, "How long the token stays valid")
	return cmd
}
