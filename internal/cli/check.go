package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/toolgate/toolgate/pkg/types"
)

func newCheckCmd() *cobra.Command {
	var argsJSON string
	var kind string
	var mode string

	cmd := &cobra.Command{
		Use:   "check TOOL",
		Short: "Classify a proposed tool call against the loaded policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			eng, err := a.engine()
			if err != nil {
				return err
			}

			call := types.ToolCall{Name: args[0], Kind: types.ToolKind(kind)}
			if argsJSON != "" {
				if err := json.Unmarshal([]byte(argsJSON), &call.Args); err != nil {
					return fmt.Errorf("parse --args: %w", err)
				}
			}

			approval := a.cfg.Session.ApprovalMode
			if mode != "" {
				approval = types.ApprovalMode(mode)
				if !approval.Valid() {
					return fmt.Errorf("invalid --mode %q", mode)
				}
			}

			emit, closeEmit, err := a.emitter()
			if err != nil {
				return err
			}
			defer closeEmit()

			res := eng.Check(cmd.Context(), call, approval)

			info := &types.PolicyInfo{Decision: res.Decision, EffectiveDecision: res.Decision, Message: res.Message}
			if res.Rule != nil {
				info.Rule = res.Rule.Name
				info.Source = res.Rule.Source
			}
			_ = emit.Emit(cmd.Context(), types.Event{
				ID:        uuid.NewString(),
				Timestamp: time.Now().UTC(),
				Type:      types.EventPolicyDecision,
				SessionID: "cli",
				Tool:      call.Name,
				Policy:    info,
			})

			out := map[string]any{"decision": res.Decision}
			if res.Rule != nil {
				out["rule"] = res.Rule.Name
				out["source"] = res.Rule.Source
			}
			if res.Message != "" {
				out["message"] = res.Message
			}
			if err := printJSON(cmd, out); err != nil {
				return err
			}
			if res.Decision == types.DecisionDeny {
				return exitCode(ExitDenied)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&argsJSON, "args", "", "Tool arguments as a JSON object")
	cmd.Flags().StringVar(&kind, "kind", string(types.KindGeneric), "Tool kind: generic|shell|edit|mcp")
	cmd.Flags().StringVar(&mode, "mode", "", "Approval mode override: default|auto_edit|yolo|plan")
	return cmd
}
