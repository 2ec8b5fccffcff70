// Package buildinfo carries build-time metadata that is not user configuration.
package buildinfo

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// UnknownValue is reported for metadata that was not injected at build time.
const UnknownValue = "unknown"

// Context holds the version and build date set through -ldflags, plus a
// system id that stays stable across runs on the same machine.
type Context struct {
	version   string
	buildDate string
	systemID  string
}

// NewContext returns build metadata. An empty systemID is left unknown.
func NewContext(version, buildDate, systemID string) *Context {
	return &Context{version: version, buildDate: buildDate, systemID: systemID}
}

// Version returns the version tag.
func (c *Context) Version() string {
	if c == nil || c.version == "" {
		return UnknownValue
	}
	return c.version
}

// BuildDate returns the build timestamp.
func (c *Context) BuildDate() string {
	if c == nil || c.buildDate == "" {
		return UnknownValue
	}
	return c.buildDate
}

// SystemID returns the per-install identifier.
func (c *Context) SystemID() string {
	if c == nil || c.systemID == "" {
		return UnknownValue
	}
	return c.systemID
}

// LoadSystemID reads the system id stored in dir, creating one when the
// file is missing or unreadable. A directory that cannot be written yields
// a fresh id for this run only.
func LoadSystemID(dir string) string {
	path := filepath.Join(dir, "system_id")
	if data, err := os.ReadFile(path); err == nil {
		if id, err := uuid.Parse(strings.TrimSpace(string(data))); err == nil {
			return id.String()
		}
	}

	id := uuid.NewString()
	if err := os.MkdirAll(dir, 0o755); err == nil {
		_ = os.WriteFile(path, []byte(id+"\n"), 0o644)
	}
	return id
}
