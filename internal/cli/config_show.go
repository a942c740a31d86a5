package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// newConfigShowCmd prints the effective configuration.
func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Prints the configuration after defaults, the config file, the env file,
CMSBULK_* variables and flags have been applied. The API token is never
printed, only whether one is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return fmt.Errorf("encoding configuration: %w", err)
			}
			out := cmd.OutOrStdout()
			_, _ = out.Write(data)

			tokenState := "unset"
			if a.cfg.CMS.Token != "" {
				tokenState = "set"
			}
			_, _ = fmt.Fprintf(out, "# api token: %s\n", tokenState)
			if err := a.cfg.ValidateAPI(); err != nil {
				_, _ = fmt.Fprintf(out, "# not ready to write: %v\n", err)
			}
			return nil
		},
	}
}
