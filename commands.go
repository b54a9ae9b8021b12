package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/abefas/todoboard/scheduler"
	"github.com/abefas/todoboard/store"
)

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one overdue sweep over every user and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := openApp(ctx, cmd.Flags())
			if err != nil {
				return err
			}
			defer a.close()

			res := scheduler.NewOverdue(a.users, a.tasks, a.cfg.OverdueInterval, a.logger).RunOnce(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "swept %d user(s): %d task(s) changed, %d failure(s)\n",
				res.Users, res.Flipped, res.Failed)
			if res.Failed > 0 {
				return fmt.Errorf("%d user(s) could not be swept", res.Failed)
			}
			return nil
		},
	}
}

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect and manage accounts",
	}
	cmd.AddCommand(usersListCmd())
	cmd.AddCommand(usersDeleteCmd())
	return cmd
}

func usersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered users",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := openApp(ctx, cmd.Flags())
			if err != nil {
				return err
			}
			defer a.close()

			users, err := a.users.GetAll(ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUSERNAME\tTASKS\tREGISTERED")
			for _, u := range users {
				tasks, err := a.tasks.GetAll(ctx, u.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", u.ID, u.Username, len(tasks), humanize.Time(u.CreatedAt))
			}
			return tw.Flush()
		},
	}
}

func usersDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [username]",
		Short: "Delete a user and all of their tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := openApp(ctx, cmd.Flags())
			if err != nil {
				return err
			}
			defer a.close()

			user, err := a.users.FindByUsername(ctx, args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no user named %q", args[0])
			}
			if err != nil {
				return err
			}

			removed, err := a.tasks.RemoveAllForUser(ctx, user.ID)
			if err != nil {
				return fmt.Errorf("failed to delete tasks of %s: %w", user.Username, err)
			}
			if _, err := a.users.DeleteUser(ctx, user.ID); err != nil {
				return fmt.Errorf("failed to delete user %s: %w", user.Username, err)
			}

			a.logger.Info("user deleted", "user", user.ID, "tasks", removed)
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s and %d task(s)\n", user.Username, removed)
			return nil
		},
	}
}
