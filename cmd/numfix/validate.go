package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"numfix/internal/config"
)

func (a *app) validateCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a job config and print its issues",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfgPath == "" {
				return usageErr("missing required --config")
			}
			job, err := config.Load(cfgPath)
			if err != nil {
				return usageErr("%w", err)
			}

			out := cmd.OutOrStdout()
			bad := 0
			for _, iss := range config.Validate(job) {
				fmt.Fprintln(out, iss.String())
				if iss.Severity == config.SeverityError {
					bad++
				}
			}
			if bad > 0 {
				return &exitError{code: 2, err: fmt.Errorf("%w: %s has %d error(s)", config.ErrInvalid, cfgPath, bad)}
			}
			fmt.Fprintf(out, "%s: ok\n", cfgPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "job config (.json, .yaml)")
	return cmd
}
