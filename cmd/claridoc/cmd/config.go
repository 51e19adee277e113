package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/claridoc/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage user configuration",
		Long: `Manage the user configuration file.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/claridoc/config.yaml)
  3. Project config (.claridoc.yaml)
  4. .env in the working directory
  5. Environment variables (CLARIDOC_*, GEMINI_API_KEY, UNIDOC_LICENSE_KEY)`,
		Example: `  claridoc config init
  claridoc config show
  claridoc config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the user configuration file with defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, backup, err := config.InitUserConfig(force)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if backup != "" {
				_, _ = fmt.Fprintf(out, "Backed up existing config to %s\n", backup)
			}
			_, err = fmt.Fprintf(out, "Created %s\n", path)
			return err
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config (a backup is kept)")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg, err := config.Load(wd)
			if err != nil {
				return err
			}
			// Secrets are tagged json:"-" but not yaml:"-".
			cfg.LLM.APIKey = redact(cfg.LLM.APIKey)
			cfg.PDF.LicenseKey = redact(cfg.PDF.LicenseKey)

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
