package agent

import (
	"fmt"

	"github.com/synapse-run/synapse/internal/mcp"
	"github.com/synapse-run/synapse/internal/provider"
)

// ErrorKind discriminates the closed set of ways the agent loop can fail.
type ErrorKind int

const (
	KindProvider ErrorKind = iota
	KindMCP
	KindMaxIterationsExceeded
)

// Error wraps either a provider.Failure or an mcp.Error, or stands alone
// for the iteration-bound case. Use errors.As to recover the wrapped cause.
type Error struct {
	Kind     ErrorKind
	Provider *provider.Failure
	MCP      *mcp.Error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindProvider:
		return fmt.Sprintf("provider error: %s", e.Provider.Error())
	case KindMCP:
		return fmt.Sprintf("MCP error: %s", e.MCP.Error())
	default:
		return "max tool call iterations exceeded"
	}
}

func (e *Error) Unwrap() error {
	switch e.Kind {
	case KindProvider:
		return e.Provider
	case KindMCP:
		return e.MCP
	default:
		return nil
	}
}

func newProviderErr(f *provider.Failure) *Error {
	return &Error{Kind: KindProvider, Provider: f}
}

func newMCPErr(e *mcp.Error) *Error {
	return &Error{Kind: KindMCP, MCP: e}
}

var errMaxIterationsExceeded = &Error{Kind: KindMaxIterationsExceeded}
