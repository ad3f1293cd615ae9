package main

import (
	"context"
	"fmt"
	"os"

	"plane-spot-system/config"
	"plane-spot-system/database"
	"plane-spot-system/logger"
	"plane-spot-system/services"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "spotctl",
		Short:         "Operator tooling for the plane spotting backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newResetCmd())
	return root
}

func newResetCmd() *cobra.Command {
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Run quota or XP resets by hand",
	}

	daily := &cobra.Command{
		Use:   "daily",
		Short: "Refill every free-tier user's daily spot quota",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsers(cmd.Context(), func(ctx context.Context, users *services.UserService) error {
				n, err := users.ResetAllDaily(ctx, true)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "daily quota reset for %d user(s)\n", n)
				return nil
			})
		},
	}

	weekly := &cobra.Command{
		Use:   "weekly",
		Short: "Zero weekly XP for users not yet rolled over this week",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsers(cmd.Context(), func(ctx context.Context, users *services.UserService) error {
				n, err := users.ResetAllWeekly(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "weekly XP reset for %d user(s)\n", n)
				return nil
			})
		},
	}

	reset.AddCommand(daily, weekly)
	return reset
}

func withUsers(ctx context.Context, fn func(context.Context, *services.UserService) error) error {
	_ = godotenv.Load()
	cfg, err := config.LoadDatabaseOnly()
	if err != nil {
		return err
	}
	logger.Init(logger.Config{Level: cfg.LogLevel, JSONOutput: cfg.LogJSON})

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer database.Close(db)

	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, services.NewUserService(db))
}
