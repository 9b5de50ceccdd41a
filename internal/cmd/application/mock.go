// Package application provides a mock Application for command tests.
package application

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/omnisync"
	"github.com/agentstation/omnisync/cmd/application"
	"github.com/agentstation/omnisync/pkg/omni"
)

// Mock provides a mock implementation of Application for testing.
// Each method can be customized by setting the corresponding function field.
// If a function field is nil, the method returns a default/zero value.
type Mock struct {
	OmniFunc         func() (*omni.Client, error)
	OmnisyncFunc     func() (omnisync.Omnisync, error)
	LoggerFunc       func() *zerolog.Logger
	OutputFormatFunc func() string
	VersionFunc      func() string
	CommitFunc       func() string
	DateFunc         func() string
	BuiltByFunc      func() string
}

// Omni returns a client using the mock function or nil.
func (m *Mock) Omni() (*omni.Client, error) {
	if m.OmniFunc != nil {
		return m.OmniFunc()
	}
	return nil, nil
}

// Omnisync returns a facade using the mock function, or one built over
// the client from Omni.
func (m *Mock) Omnisync() (omnisync.Omnisync, error) {
	if m.OmnisyncFunc != nil {
		return m.OmnisyncFunc()
	}
	client, err := m.Omni()
	if err != nil {
		return nil, err
	}
	return omnisync.New(omnisync.WithClient(client))
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat returns output format using the mock function or "table".
func (m *Mock) OutputFormat() string {
	if m.OutputFormatFunc != nil {
		return m.OutputFormatFunc()
	}
	return "table"
}

// Version returns version using the mock function or "dev".
func (m *Mock) Version() string {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return "dev"
}

// Commit returns commit using the mock function or "unknown".
func (m *Mock) Commit() string {
	if m.CommitFunc != nil {
		return m.CommitFunc()
	}
	return "unknown"
}

// Date returns date using the mock function or "unknown".
func (m *Mock) Date() string {
	if m.DateFunc != nil {
		return m.DateFunc()
	}
	return "unknown"
}

// BuiltBy returns builtBy using the mock function or "test".
func (m *Mock) BuiltBy() string {
	if m.BuiltByFunc != nil {
		return m.BuiltByFunc()
	}
	return "test"
}

// Ensure Mock implements Application at compile time.
var _ application.Application = (*Mock)(nil)
