package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/cache"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/consent"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/guard"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/handler"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/orchestrator"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/route"
)

var (
	turnUserID   string
	turnSession  string
	turnConsents []string
	turnJSON     bool
)

var turnCmd = &cobra.Command{
	Use:   "turn [message]",
	Short: "Dispatch one message through the full pipeline (offline, static handlers)",
	Long: `Runs one conversational turn locally without a server or LLM backend:
threat screening, consent check, routing and a canned specialist response.
Useful for trying routing and consent behavior from the terminal.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTurn,
}

func init() {
	turnCmd.Flags().StringVar(&turnUserID, "user", "local", "user ID for the consent check")
	turnCmd.Flags().StringVar(&turnSession, "session", "local", "session ID")
	turnCmd.Flags().StringSliceVar(&turnConsents, "consent", nil, "purposes to grant (e.g. --consent marketing,personalization)")
	turnCmd.Flags().BoolVar(&turnJSON, "json", false, "print the raw turn result as JSON")
	rootCmd.AddCommand(turnCmd)
}

func runTurn(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "turn")
	defer span.End()

	message := strings.Join(args, " ")

	g, err := guard.NewDefault("")
	if err != nil {
		return fmt.Errorf("compiling threat patterns: %w", err)
	}
	router, err := route.NewDefault("")
	if err != nil {
		return fmt.Errorf("compiling routing keywords: %w", err)
	}
	policy, err := consent.NewPurposePolicy(ctx)
	if err != nil {
		return fmt.Errorf("compiling consent policy: %w", err)
	}

	svc := consent.NewStaticService()
	for _, purpose := range turnConsents {
		svc.Grant(turnUserID, purpose)
	}

	orch := orchestrator.New(
		g,
		consent.NewGate(svc, policy),
		router,
		cache.New(handler.StaticFactory(0)),
		nil,
		orchestrator.Config{},
	)

	result := orch.ProcessTurn(ctx, message, map[string]interface{}{"user_id": turnUserID}, turnSession)

	if turnJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Printf("%s\n\n", result.ResponseText)
	fmt.Printf("step:       %s\n", result.WorkflowStep)
	if result.HandlerKind != "" {
		fmt.Printf("handler:    %s\n", result.HandlerKind)
	}
	fmt.Printf("confidence: %.2f\n", result.Confidence)
	if reason, ok := result.Metadata["reason"]; ok {
		fmt.Printf("reason:     %v\n", reason)
	}
	return nil
}
