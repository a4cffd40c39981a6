package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/toolgate/toolgate/internal/config"
	"github.com/toolgate/toolgate/internal/store/sqlite"
	"github.com/toolgate/toolgate/pkg/types"
)

func newAuditCmd() *cobra.Command {
	var sessionID string
	var eventTypes []string
	var limit int
	var asc bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the decision audit store",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			if a.cfg.Audit.Backend != "sqlite" {
				return fmt.Errorf("audit queries need the sqlite backend (configured: %q)", a.cfg.Audit.Backend)
			}
			path := a.cfg.Audit.Path
			if path == "" {
				path = config.DefaultAuditPath("events.db")
			}
			s, err := sqlite.Open(path)
			if err != nil {
				return err
			}
			defer s.Close()

			evs, err := s.QueryEvents(cmd.Context(), types.EventQuery{
				SessionID: sessionID,
				Types:     eventTypes,
				Limit:     limit,
				Asc:       asc,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, evs)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Filter by session id")
	cmd.Flags().StringArrayVar(&eventTypes, "type", nil, "Filter by event type (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum events to return")
	cmd.Flags().BoolVar(&asc, "asc", false, "Oldest first")
	return cmd
}
