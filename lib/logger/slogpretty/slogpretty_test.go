package slogpretty

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldsOf(t *testing.T, line string) map[string]any {
	t.Helper()
	start := strings.Index(line, "{")
	require.GreaterOrEqual(t, start, 0, line)

	var fields map[string]any
	require.NoError(t, json.Unmarshal([]byte(line[start:]), &fields))
	return fields
}

func TestGroupsNestFields(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	opts := PrettyHandlerOptions{SlogOpts: &slog.HandlerOptions{Level: slog.LevelDebug}}
	log := slog.New(opts.NewPrettyHandler(&buf)).
		With(slog.String("op", "relay.Signal")).
		WithGroup("conn").
		With(slog.String("id", "c1")).
		WithGroup("room")

	log.Info("signal relayed", slog.Int("delivered", 2), slog.Group("peer", slog.String("id", "c2")))

	fields := fieldsOf(t, buf.String())
	assert.Equal(t, "relay.Signal", fields["op"])
	assert.Equal(t, map[string]any{
		"id": "c1",
		"room": map[string]any{
			"delivered": float64(2),
			"peer":      map[string]any{"id": "c2"},
		},
	}, fields["conn"])
}

func TestEmptyGroupsAreDropped(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	log := slog.New(PrettyHandlerOptions{SlogOpts: &slog.HandlerOptions{}}.NewPrettyHandler(&buf)).
		WithGroup("unused")

	log.Info("plain", slog.Group("empty"))
	log.Info("plain", slog.String("k", "v"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.NotContains(t, lines[0], "unused")
	assert.Equal(t, map[string]any{"unused": map[string]any{"k": "v"}}, fieldsOf(t, buf.String()[strings.LastIndex(buf.String(), "plain"):]))
}
