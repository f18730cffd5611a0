package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursecraft-backend/internal/domain"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd("test")
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRecoverFromStdin(t *testing.T) {
	out, err := run(t, "Here you go:\n```json\n{\"title\": \"Loops\", \"subtopics\": [\"for\"]}\n```", "--kind", "topic")
	require.NoError(t, err)

	var obj domain.RecoveredObject
	require.NoError(t, json.Unmarshal([]byte(out), &obj))
	assert.Equal(t, domain.KindTopic, obj.Kind)
	assert.Equal(t, domain.TierExact, obj.Tier)
}

func TestRecoverFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.txt")
	require.NoError(t, os.WriteFile(path, []byte(`[{"title": "Tour of Go",}]`), 0o600))

	out, err := run(t, "", "--kind", "resource_list", "--input", path, "--pretty")
	require.NoError(t, err)
	assert.Contains(t, out, "\n  \"kind\"")

	var obj domain.RecoveredObject
	require.NoError(t, json.Unmarshal([]byte(out), &obj))
	list, ok := obj.ResourceList()
	require.True(t, ok)
	assert.Equal(t, "Tour of Go", list.Resources[0].Title)
}

func TestRecoverEmptyInputYieldsDefault(t *testing.T) {
	out, err := run(t, "", "--kind", "slides")
	require.NoError(t, err)

	var obj domain.RecoveredObject
	require.NoError(t, json.Unmarshal([]byte(out), &obj))
	assert.Equal(t, domain.TierHeuristic, obj.Tier)
	assert.True(t, obj.Approximate)
}

func TestRecoverErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing kind", nil},
		{"unknown kind", []string{"--kind", "essay"}},
		{"missing file", []string{"--kind", "topic", "--input", "/nonexistent/raw.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, "{}", tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestKindsCommand(t *testing.T) {
	out, err := run(t, "", "kinds")
	require.NoError(t, err)
	for _, k := range domain.AllKinds() {
		assert.Contains(t, out, string(k))
	}
}
