package cli

import (
	"os"

	"github.com/spf13/cobra"
)

func NewRoot(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "toolgate",
		Short:         "toolgate: authorization core for agent tool calls",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Version = version
	cmd.SetVersionTemplate("toolgate {{.Version}}\n")

	cmd.PersistentFlags().String("config", getenvDefault("TOOLGATE_CONFIG", ""), "Path to the toolgate config file")

	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newRenderCmd())
	cmd.AddCommand(newAuditCmd())

	return cmd
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
