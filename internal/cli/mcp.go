package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/toolgate/toolgate/internal/gate"
	"github.com/toolgate/toolgate/pkg/types"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Inspect and control MCP server enablement",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "can-load SERVER_ID",
		Short: "Evaluate the gate for a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			res := a.gate().CanLoad(args[0], a.gateOptions())
			out := map[string]any{"allowed": res.Allowed}
			if !res.Allowed {
				out["block_type"] = res.BlockType

				emit, closeEmit, err := a.emitter()
				if err != nil {
					return err
				}
				defer closeEmit()
				_ = emit.Emit(cmd.Context(), types.Event{
					ID:        uuid.NewString(),
					Timestamp: time.Now().UTC(),
					Type:      types.EventServerBlocked,
					SessionID: "cli",
					ServerID:  gate.NormalizeServerID(args[0]),
					BlockType: string(res.BlockType),
				})
			}
			if err := printJSON(cmd, out); err != nil {
				return err
			}
			if !res.Allowed {
				return exitCode(ExitDenied)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "state SERVER_ID",
		Short: "Show a server's enablement state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			return printJSON(cmd, a.gate().Enablement().GetDisplayState(args[0]))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "enable SERVER_ID",
		Short: "Persistently enable a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			if err := a.gate().Enablement().Enable(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "disable SERVER_ID",
		Short: "Persistently disable a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			if err := a.gate().Enablement().Disable(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	})

	return cmd
}
