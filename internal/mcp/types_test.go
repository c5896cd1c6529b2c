package mcp

import "testing"

func TestErrorFormatting(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		want string
	}{
		{"config error", newConfigError("bad yaml: %s", "oops"), "MCP config error: bad yaml: oops"},
		{"connection error", newConnectionError("fs", "refused"), "MCP connection error for server 'fs': refused"},
		{"tool error", newToolError("unknown tool: %s", "search"), "MCP tool error: unknown tool: search"},
		{"io error", newIOError("broken pipe"), "MCP IO error: broken pipe"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.err.Error(); got != c.want {
				t.Errorf("got %q, want %q", got, c.want)
			}
		})
	}
}
