package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/raniellyferreira/magicdb"
	"github.com/raniellyferreira/magicdb/config"
	"github.com/raniellyferreira/magicdb/internal/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newStartCmd() *cobra.Command {
	var (
		path     string
		port     int
		protocol string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(viper.New(), path)
			if err != nil {
				return fmt.Errorf("cannot read %s: %w", path, err)
			}

			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("protocol") {
				cfg.Server.Protocol = protocol
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			level, err := cfg.Log.SlogLevel()
			if err != nil {
				return err
			}
			logger := magicdb.NewTextLogger(os.Stderr, level)

			ctx := cmd.Context()
			shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
			if err != nil {
				return fmt.Errorf("setup tracing: %w", err)
			}
			defer func() { _ = shutdownTracing(context.WithoutCancel(ctx)) }()

			opts, err := cfg.Options()
			if err != nil {
				return err
			}
			srv, err := magicdb.New(append(opts, magicdb.WithLogger(logger))...)
			if err != nil {
				return err
			}

			if err := srv.Start(ctx); err != nil {
				return err
			}
			defer srv.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Server started at: %s [%s]\n", srv.Addr(), strings.ToUpper(string(srv.Protocol())))

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "config", "c", config.DefaultPath, "path of the config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "override server.port")
	cmd.Flags().StringVarP(&protocol, "protocol", "r", "", "override server.protocol (tcp, udp or reflect)")

	return cmd
}
