package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/formwise/authcore/internal/seed"
	"github.com/formwise/authcore/password"
)

func newSeedCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the built-in roles and demo accounts",
		Long: `seed inserts the USER, ADMIN and SYSTEM_ADMIN roles and two demo accounts.
Existing records are left untouched, so running it twice is safe.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log, err := root.setup(ctx)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}

			repos, err := openRepositories(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer repos.close()

			hasher, err := password.NewBcrypt(cfg.Auth.BcryptCost)
			if err != nil {
				return err
			}
			return seed.Run(ctx, repos.users, repos.roles, hasher, log)
		},
	}
}
