package main

import (
	"fmt"
	"sort"

	"github.com/raniellyferreira/magicdb"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := magicdb.VersionInfo()
			keys := make([]string, 0, len(info))
			for key := range info {
				keys = append(keys, key)
			}
			sort.Strings(keys)

			for _, key := range keys {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", key, info[key]); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
