package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/toolgate/toolgate/internal/session"
	"github.com/toolgate/toolgate/internal/shellinject"
)

func newRenderCmd() *cobra.Command {
	var argsRaw string
	var approve []string

	cmd := &cobra.Command{
		Use:   "render TEMPLATE",
		Short: "Resolve a template with embedded !{...} shell directives",
		Long: `Resolve a template with embedded !{...} shell directives.

Each directive is checked against the loaded policy before anything runs.
Commands needing confirmation are listed; pass them back via --approve to
treat them as confirmed for this invocation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			eng, err := a.engine()
			if err != nil {
				return err
			}

			allow := session.NewAllowlist()
			for _, c := range approve {
				allow.Add(c)
			}

			proc := shellinject.NewProcessor(
				eng,
				allow,
				&shellinject.ShellRunner{Dir: a.cfg.Workspace.Root},
				a.cfg.Session.ApprovalMode,
				a.cfg.Shell.ToolName,
				a.logger,
			)

			res, err := proc.Process(cmd.Context(), args[0], argsRaw)
			if err != nil {
				return err
			}
			if res.NeedsConfirmation() {
				return exitCodef(ExitConfirmationPending, "confirmation required for:\n  %s",
					strings.Join(res.PendingConfirmation, "\n  "))
			}
			fmt.Fprint(cmd.OutOrStdout(), res.Text)
			return nil
		},
	}
	cmd.Flags().StringVar(&argsRaw, "args", "", "Raw invocation arguments substituted for {{args}}")
	cmd.Flags().StringArrayVar(&approve, "approve", nil, "Command confirmed for this invocation (repeatable)")
	return cmd
}
