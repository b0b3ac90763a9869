package main

import (
	"fmt"

	"github.com/raniellyferreira/magicdb/config"
	"github.com/spf13/cobra"
)

func newSetupCmd() *cobra.Command {
	var (
		path  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Write a default magic.toml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.WriteDefault(path, force); err != nil {
				return fmt.Errorf("magic config cannot be created: %w", err)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s created!\n", path)
			return err
		},
	}

	cmd.Flags().StringVarP(&path, "config", "c", config.DefaultPath, "path of the config file to write")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config file")

	return cmd
}
