package provider

import "fmt"

// Failure is the closed set of ways a provider call can fail. Adapters
// construct these directly; callers obtain a *Failure with errors.As and
// distinguish the variants by checking Kind.
type Failure struct {
	Kind    FailureKind
	Message string
}

// FailureKind discriminates the Failure variants named by the component
// design: semantic upstream error, transport failure, credential rejection,
// missing credential, and an unrecognized provider name.
type FailureKind int

const (
	// KindProviderError is a semantic error surfaced by the upstream API
	// (a well-formed but unsuccessful response, or a response that doesn't
	// match the expected schema).
	KindProviderError FailureKind = iota
	// KindRequestFailed covers transport failures and non-2xx responses
	// other than 401.
	KindRequestFailed
	// KindAuthenticationError is an HTTP 401 from the upstream API.
	KindAuthenticationError
	// KindMissingAPIKey means no credential could be resolved for the
	// provider (neither environment variable nor configuration).
	KindMissingAPIKey
	// KindUnknownProvider means the configured provider name isn't one
	// this factory knows how to construct.
	KindUnknownProvider
)

func (f *Failure) Error() string {
	return f.Message
}

// NewProviderError builds a KindProviderError failure.
func NewProviderError(message string) *Failure {
	return &Failure{Kind: KindProviderError, Message: message}
}

// NewRequestFailed builds a KindRequestFailed failure.
func NewRequestFailed(message string) *Failure {
	return &Failure{Kind: KindRequestFailed, Message: message}
}

// NewAuthenticationError builds a KindAuthenticationError failure.
func NewAuthenticationError(message string) *Failure {
	return &Failure{Kind: KindAuthenticationError, Message: message}
}

// NewMissingAPIKey builds a KindMissingAPIKey failure.
func NewMissingAPIKey(message string) *Failure {
	return &Failure{Kind: KindMissingAPIKey, Message: message}
}

// NewUnknownProvider builds a KindUnknownProvider failure.
func NewUnknownProvider(name string) *Failure {
	return &Failure{Kind: KindUnknownProvider, Message: fmt.Sprintf("unknown provider: %s", name)}
}

// classifyStatusCode maps an HTTP status and body to the failure the
// component design requires: 401 is always authentication, everything else
// non-2xx is a transport-level request failure carrying the status and body.
func classifyStatusCode(status int, body string) *Failure {
	if status == 401 {
		if msg := extractErrorMessage(body); msg != "" {
			return NewAuthenticationError(msg)
		}
		return NewAuthenticationError("Invalid API key")
	}
	return NewRequestFailed(fmt.Sprintf("HTTP %d: %s", status, body))
}
