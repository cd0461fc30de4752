package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/aldoetobex/legal-consult-backend/pkg/config"
)

func init() {
	f := NewDBFlags()

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Creates or updates the PostgreSQL schema.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if err := cfg.Validate(); err != nil {
				return errors.WithMessage(err, "invalid configuration")
			}

			mgr := f.Manager(cfg)
			defer mgr.Close()

			if err := mgr.Migrate(context.Background()); err != nil {
				return errors.WithMessage(err, "could not migrate db")
			}
			return nil
		},
	}

	f.BindFlags(cmd.Flags())

	rootCmd.AddCommand(cmd)
}
