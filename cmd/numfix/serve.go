package main

import (
	"github.com/spf13/cobra"

	"numfix/internal/config"
	"numfix/internal/httpapi"
	"numfix/internal/logging"
)

func (a *app) serveCmd() *cobra.Command {
	var (
		addr    string
		cfgPath string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /api/process over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("addr") {
				if env := a.d.Getenv("NUMFIX_ADDR"); env != "" {
					addr = env
				}
			}

			job := config.Job{}.WithDefaults()
			if cfgPath != "" {
				j, err := config.Load(cfgPath)
				if err != nil {
					return usageErr("%w", err)
				}
				job = j
			}
			stop := a.startMetrics(cmd.Context(), job.Job, job.Metrics)
			defer stop()

			srv := httpapi.New(logging.Component(a.log, "httpapi"))
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", httpapi.DefaultAddr, "listen address (env NUMFIX_ADDR)")
	cmd.Flags().StringVar(&cfgPath, "config", "", "job config; only its metrics section is used")
	return cmd
}
