package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/audit"
)

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	expected := []string{
		"version",
		"validate",
		"serve",
		"turn",
		"audit",
		"consent",
	}
	registered := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		registered[cmd.Name()] = true
	}
	for _, name := range expected {
		assert.True(t, registered[name], "subcommand %q should be registered", name)
	}
}

func TestRootCommand_HelpOutput(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"--help"})

	err := rootCmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "chatbuddy")
	assert.Contains(t, buf.String(), "serve")
}

func TestResolvedVersion_ExplicitWins(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })

	Version = "1.2.3"
	assert.Equal(t, "1.2.3", resolvedVersion())
}

func TestRenderAuditList(t *testing.T) {
	events := []audit.Event{
		{
			ID:        "evt_1",
			TurnID:    "turn_abc",
			SessionID: "sess-1",
			Stage:     audit.StageRoute,
			Decision:  "marketing",
			Reason:    "",
			Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			ID:          "evt_2",
			TurnID:      "turn_abc",
			SessionID:   "sess-1",
			Stage:       audit.StageTurn,
			Decision:    "failed",
			Reason:      "consent_denied",
			HandlerKind: "marketing",
			Timestamp:   time.Date(2026, 8, 1, 12, 0, 1, 0, time.UTC),
		},
	}

	buf := new(bytes.Buffer)
	renderAuditList(buf, events)
	out := buf.String()

	assert.Contains(t, out, "showing 2")
	assert.Contains(t, out, "turn_abc")
	assert.Contains(t, out, "reason=consent_denied")
	assert.Equal(t, 2, strings.Count(out, "sess-1"))
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, "(embedded)", orDefault(""))
	assert.Equal(t, "custom.yaml", orDefault("custom.yaml"))
}
