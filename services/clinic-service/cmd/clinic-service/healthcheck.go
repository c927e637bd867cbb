package main

import (
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/grpcx"
	"github.com/spf13/cobra"
)

// healthcheckCmd lets container runtimes probe the gRPC health service with the
// service binary itself.
func healthcheckCmd() *cobra.Command {
	var (
		addr    string
		service string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe the gRPC health service and exit non-zero unless it is serving",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return grpcx.Probe(cmd.Context(), addr, service, timeout)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:9090", "gRPC address to probe")
	cmd.Flags().StringVar(&service, "service", grpcServiceName, "service name to check; empty checks the server as a whole")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "probe timeout")
	return cmd
}
