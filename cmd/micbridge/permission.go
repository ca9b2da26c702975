package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/roboricindustries/raycon-micbridge/pkg/config"
	"github.com/roboricindustries/raycon-micbridge/pkg/permission"
)

var permissionOpts struct {
	request bool
}

var permissionCmd = &cobra.Command{
	Use:   "permission",
	Short: "Print the microphone authorization status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var cfg config.Config
		if err := config.ParseEnv(&cfg); err != nil {
			return err
		}
		auth := newAuthorizer(cfg, afero.NewOsFs())

		var (
			st  permission.Status
			err error
		)
		if permissionOpts.request {
			st, err = auth.Request(cmd.Context())
		} else {
			st, err = auth.Status(cmd.Context())
		}
		if err != nil {
			return fmt.Errorf("microphone permission: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), st)
		return err
	},
}

func init() {
	permissionCmd.Flags().BoolVar(&permissionOpts.request, "request", false, "request authorization when not yet determined")
}
