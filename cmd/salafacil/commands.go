package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/salafacil/salafacil/internal/application"
	"github.com/salafacil/salafacil/internal/config"
	"github.com/salafacil/salafacil/internal/persistence/sqlstore"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status|version]",
		Short:     "Manage the database schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.DatabaseDriver == config.DriverMemory {
				return fmt.Errorf("migrate requires DATABASE_DRIVER postgres or sqlite")
			}
			action := "up"
			if len(args) == 1 {
				action = args[0]
			}

			ctx := cmd.Context()
			store, err := sqlstore.Open(ctx, a.cfg.DatabaseDriver, a.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer store.Close()

			switch action {
			case "up":
				return sqlstore.MigrateUp(ctx, store.DB(), store.Dialect(), a.logger)
			case "down":
				if err := sqlstore.MigrateDown(ctx, store.DB(), store.Dialect()); err != nil {
					return err
				}
				a.logger.InfoContext(ctx, "rolled back one migration")
				return nil
			case "version":
				version, err := sqlstore.MigrationVersion(ctx, store.DB(), store.Dialect())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), version)
				return nil
			default:
				statuses, err := sqlstore.MigrationStatuses(ctx, store.DB(), store.Dialect())
				if err != nil {
					return err
				}
				for _, st := range statuses {
					state := "pending"
					if st.Applied {
						state = "applied"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%05d %-8s %s\n", st.Version, state, st.Source)
				}
				return nil
			}
		},
	}
}

func newSweepCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one reservation status sweep and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStorage(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			publisher, closeEvents := openEvents(ctx, a.cfg, a.logger)
			defer closeEvents()

			services, err := buildServices(a.cfg, store, a.logger, serviceOptions{events: publisher})
			if err != nil {
				return err
			}
			result, err := services.StatusUpdater.Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "examined=%d transitions=%d stale=%d\n", result.Examined, result.Transitions, result.Stale)
			return nil
		},
	}
}

func newCreateAdminCommand(a *app) *cobra.Command {
	var (
		input      application.UserInput
		superadmin bool
	)
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator or promote an existing account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStorage(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			services, err := buildServices(a.cfg, store, a.logger, serviceOptions{})
			if err != nil {
				return err
			}
			user, err := services.Users.BootstrapAdmin(ctx, input, superadmin)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", user.ID, user.Email, user.Role)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&input.Email, "email", "", "administrator email")
	flags.StringVar(&input.Password, "password", "", "administrator password")
	flags.StringVar(&input.Name, "nome", "Administrador", "display name")
	flags.StringVar(&input.Username, "username", "", "login name, derived from the email when empty")
	flags.BoolVar(&superadmin, "superadmin", false, "grant the superadmin role")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
