package cmds

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/ltfawg/subscribe-api/internal/exiterr"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets redacted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return exiterr.Wrap(exiterr.ExitErrored, err)
		}

		out, err := yaml.Marshal(cfg.Redacted())
		if err != nil {
			return exiterr.Wrap(exiterr.ExitErrored, fmt.Errorf("failed to encode config: %w", err))
		}

		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
