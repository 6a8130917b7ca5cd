package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/audit"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/config"
)

var (
	auditSession string
	auditStage   string
	auditLimit   int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List recent audit events",
	RunE:  auditList,
}

func init() {
	auditCmd.Flags().StringVar(&auditSession, "session", "", "filter by session ID")
	auditCmd.Flags().StringVar(&auditStage, "stage", "", "filter by stage (guard, consent, route, execute, turn)")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 20, "maximum events to show")
	rootCmd.AddCommand(auditCmd)
}

func openAuditStore() (*audit.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return audit.NewStore(cfg.AuditDBPath())
}

func auditList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	store, err := openAuditStore()
	if err != nil {
		return fmt.Errorf("initializing audit store: %w", err)
	}
	defer store.Close()

	events, err := store.List(ctx, auditSession, audit.Stage(auditStage), time.Time{}, time.Time{}, auditLimit)
	if err != nil {
		return fmt.Errorf("querying audit events: %w", err)
	}

	if len(events) == 0 {
		fmt.Println("No audit events found.")
		return nil
	}
	renderAuditList(os.Stdout, events)
	return nil
}

// renderAuditList writes event lines to w (testable).
func renderAuditList(w io.Writer, events []audit.Event) {
	fmt.Fprintf(w, "Audit Events (showing %d):\n\n", len(events))
	for i := range events {
		ev := &events[i]
		detail := ev.Decision
		if ev.HandlerKind != "" {
			detail = fmt.Sprintf("%s kind=%s", detail, ev.HandlerKind)
		}
		if ev.Reason != "" {
			detail = fmt.Sprintf("%s reason=%s", detail, ev.Reason)
		}
		fmt.Fprintf(w, "  %s  %-8s %-10s %s  %s\n",
			ev.Timestamp.Format(time.RFC3339),
			ev.Stage,
			ev.TurnID,
			ev.SessionID,
			detail,
		)
	}
}
