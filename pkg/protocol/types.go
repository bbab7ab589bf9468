// Package protocol defines the JSON envelopes exchanged between the browser
// extension and the native host, and the documents they carry.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// MessageType discriminates request envelopes.
type MessageType string

const (
	TypeGetConfig       MessageType = "GET_CONFIG"
	TypeUpdateConfig    MessageType = "UPDATE_CONFIG"
	TypeInstallServer   MessageType = "INSTALL_SERVER"
	TypeUninstallServer MessageType = "UNINSTALL_SERVER"
)

// MessageTypes lists every request type the host understands.
var MessageTypes = []MessageType{
	TypeGetConfig,
	TypeUpdateConfig,
	TypeInstallServer,
	TypeUninstallServer,
}

// Known reports whether t is one of MessageTypes.
func (t MessageType) Known() bool {
	for _, k := range MessageTypes {
		if t == k {
			return true
		}
	}
	return false
}

// Wire-visible error strings. Browser-side code matches on these literally.
const (
	MsgUnknownMessageType = "Unknown message type"
	MsgUnknownRequestType = "Unknown request type"
	MsgServerNotFound     = "Server not found in config"
	MsgHostUnavailable    = "desktop agent not available"
)

//nolint:staticcheck // error text is part of the wire protocol
var (
	// ErrUnknownMessageType is returned by the host for an unrecognized type.
	ErrUnknownMessageType = errors.New(MsgUnknownMessageType)

	// ErrUnknownRequestType is returned by the relay for an unrecognized type.
	ErrUnknownRequestType = errors.New(MsgUnknownRequestType)
)

// Request is a command sent to the native host.
//
// ID is optional. Peers that set it get it echoed in the Response; peers that
// omit it rely on one request being in flight at a time.
type Request struct {
	ID         string            `json:"id,omitempty" jsonschema:"description=Correlation identifier echoed in the response"`
	Type       MessageType       `json:"type" jsonschema:"enum=GET_CONFIG,enum=UPDATE_CONFIG,enum=INSTALL_SERVER,enum=UNINSTALL_SERVER"`
	Config     *Config           `json:"config,omitempty"`
	Server     *ServerDescriptor `json:"server,omitempty"`
	ServerName string            `json:"serverName,omitempty"`
}

// Validate checks that the fields required by r.Type are present.
// An unknown type is not a validation error; the dispatcher reports it.
func (r *Request) Validate() error {
	switch r.Type {
	case TypeUpdateConfig:
		if r.Config == nil {
			return fmt.Errorf("config is required for %s", r.Type)
		}
	case TypeInstallServer:
		if r.Server == nil {
			return fmt.Errorf("server is required for %s", r.Type)
		}
		return r.Server.Validate()
	case TypeUninstallServer:
		if r.ServerName == "" {
			return fmt.Errorf("serverName is required for %s", r.Type)
		}
	}
	return nil
}

// Response answers exactly one Request.
type Response struct {
	ID      string          `json:"id,omitempty"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// OK builds a success response. A nil data omits the field.
func OK(id string, data any) (*Response, error) {
	resp := &Response{ID: id, Success: true}
	if data == nil {
		return resp, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshaling response data: %w", err)
	}
	resp.Data = raw
	return resp, nil
}

// Fail builds a failure response carrying err's message.
func Fail(id string, err error) *Response {
	return &Response{ID: id, Success: false, Error: err.Error()}
}

// Runtime selects the package manager family for a server.
type Runtime string

const (
	RuntimeNode   Runtime = "node"
	RuntimePython Runtime = "python"
	RuntimeGit    Runtime = "git"
)

// namePattern validates server names used as config keys.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9@][a-zA-Z0-9 @._/-]*$`)

// ServerDescriptor describes an installable MCP server.
type ServerDescriptor struct {
	Name          string        `json:"name" yaml:"name"`
	Description   string        `json:"description,omitempty" yaml:"description,omitempty"`
	Version       string        `json:"version,omitempty" yaml:"version,omitempty"`
	Repository    string        `json:"repository" yaml:"repository"`
	Runtime       Runtime       `json:"runtime" yaml:"runtime"`
	InstallArgs   []string      `json:"install_args,omitempty" yaml:"install_args,omitempty"`
	Tags          []string      `json:"tags,omitempty" yaml:"tags,omitempty"`
	DefaultConfig DefaultConfig `json:"default_config" yaml:"default_config"`
}

// DefaultConfig seeds the config entry created for a newly installed server.
type DefaultConfig struct {
	Port      int               `json:"port,omitempty" yaml:"port,omitempty"`
	AuthToken string            `json:"auth_token,omitempty" yaml:"auth_token,omitempty"`
	Env       map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

// Validate checks a ServerDescriptor for correctness.
func (d *ServerDescriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !namePattern.MatchString(d.Name) {
		return fmt.Errorf("name %q must match %s", d.Name, namePattern.String())
	}
	if d.Repository == "" {
		return fmt.Errorf("server %q: repository is required", d.Name)
	}
	if d.DefaultConfig.Port < 0 || d.DefaultConfig.Port > 65535 {
		return fmt.Errorf("server %q: port %d out of range", d.Name, d.DefaultConfig.Port)
	}
	return nil
}

// Command returns the interpreter recorded in the config for this runtime.
func (r Runtime) Command() string {
	if r == RuntimeNode {
		return "node"
	}
	return "python"
}
