package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
}

func TestComponent_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	log := Component("issuance")
	log.Info().Str("employee_id", "E-1").Msg("issuance started")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "issuance", line["component"])
	assert.Equal(t, "E-1", line["employee_id"])
	assert.Equal(t, "issuance started", line["message"])
}

func TestFromContext_FallsBackToGlobal(t *testing.T) {
	var buf bytes.Buffer
	custom := zerolog.New(&buf)
	ctx := WithContext(context.Background(), custom)

	l := FromContext(ctx)
	l.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")

	// no logger attached: the global logger is returned without panicking
	_ = FromContext(context.Background())
}
