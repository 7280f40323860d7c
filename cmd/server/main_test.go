package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSeed_ListsScenarios(t *testing.T) {
	out, err := execute(t, "seed", "--db", ":memory:", "--log-level", "error")

	require.NoError(t, err)
	assert.Contains(t, out, "healthy-issuance")
	assert.Contains(t, out, "approve-within-policy")
}

func TestSeed_LoadsScenario(t *testing.T) {
	// GIVEN: An ephemeral database
	// WHEN: The partial persistence scenario is seeded
	out, err := execute(t, "seed", "--db", ":memory:", "--log-level", "error", "--scenario", "partial-persistence")

	// THEN: The issuance result is printed as JSON
	require.NoError(t, err)
	var res struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.Equal(t, "partial", res.Status)
}

func TestSeed_UnknownScenario(t *testing.T) {
	_, err := execute(t, "seed", "--db", ":memory:", "--log-level", "error", "--scenario", "year-end")

	assert.Error(t, err)
}

func TestExpire_EmptyDatabase(t *testing.T) {
	out, err := execute(t, "expire", "--db", ":memory:", "--log-level", "error")

	require.NoError(t, err)
	assert.Equal(t, "0 vouchers expired\n", out)
}

func TestLoad_InvalidConfig(t *testing.T) {
	t.Setenv("BENEFITS_ISSUANCE_CONCURRENCY", "0")

	_, err := execute(t, "expire", "--db", ":memory:")

	assert.ErrorContains(t, err, "issuance.concurrency")
}
