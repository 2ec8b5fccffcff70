package buildinfo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextValues(t *testing.T) {
	tests := []struct {
		name                    string
		ctx                     *Context
		version, date, systemID string
	}{
		{"nil context", nil, UnknownValue, UnknownValue, UnknownValue},
		{"empty values", NewContext("", "", ""), UnknownValue, UnknownValue, UnknownValue},
		{"pre-release tag", NewContext("1.0.0-beta.1", "2026-01-01", "abc"), "1.0.0-beta.1", "2026-01-01", "abc"},
		{"build metadata", NewContext("1.0.0+build.123", "", "abc"), "1.0.0+build.123", UnknownValue, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.version, tt.ctx.Version())
			assert.Equal(t, tt.date, tt.ctx.BuildDate())
			assert.Equal(t, tt.systemID, tt.ctx.SystemID())
		})
	}
}

func TestLoadSystemIDIsStable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")

	first := LoadSystemID(dir)
	_, err := uuid.Parse(first)
	require.NoError(t, err)
	assert.Equal(t, first, LoadSystemID(dir))
}

func TestLoadSystemIDReplacesGarbage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "system_id"), []byte("not-a-uuid"), 0o644))

	id := LoadSystemID(dir)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, LoadSystemID(dir))
}
