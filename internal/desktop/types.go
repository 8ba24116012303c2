// Package desktop reads, merges, and writes the Claude Desktop
// configuration file.
//
// The file is owned by the desktop application, not by restack: only the
// server registry under the "mcpServers" key is managed here. Every other
// top-level key is carried through byte-for-byte, so settings this tool
// has never heard of survive a rewrite untouched.
package desktop

import (
	"encoding/json"
	"path/filepath"
)

// ServersKey is the single top-level key restack manages.
const ServersKey = "mcpServers"

// Server represents one MCP server entry under the managed key.
type Server struct {
	// Name is the server's identifier, populated from the map key when
	// loading. Not serialized to JSON as it's the map key itself.
	Name string `json:"-"`

	// Command is the executable to run, as an absolute path.
	Command string `json:"command,omitempty"`

	// Args are command-line arguments passed to the command.
	Args []string `json:"args,omitempty"`

	// Env contains environment variables passed to the server process.
	Env map[string]string `json:"env,omitempty"`
}

// NewServer builds a managed stdio server entry. The command and wrapper
// paths are normalized to forward slashes; extra arguments are passed
// through untouched since they belong to the operator, not to restack.
func NewServer(name, command, wrapper string, extraArgs []string, env map[string]string) *Server {
	args := make([]string, 0, 1+len(extraArgs))
	args = append(args, filepath.ToSlash(wrapper))
	args = append(args, extraArgs...)

	return &Server{
		Name:    name,
		Command: filepath.ToSlash(command),
		Args:    args,
		Env:     env,
	}
}

// Config represents the root structure of claude_desktop_config.json.
// It preserves unknown top-level fields for forward compatibility with
// settings owned by the desktop application.
type Config struct {
	// Servers maps server names to their configurations.
	Servers map[string]*Server `json:"mcpServers"`

	// unknownFields stores any JSON fields not explicitly defined in this
	// struct. Values are kept as raw bytes and re-emitted verbatim, so
	// number formatting and other token-level details survive a rewrite.
	unknownFields map[string]json.RawMessage
}

// NewConfig returns an empty configuration with an initialized registry.
func NewConfig() *Config {
	return &Config{Servers: make(map[string]*Server)}
}

// MarshalJSON implements json.Marshaler to include unknown fields in output.
func (c *Config) MarshalJSON() ([]byte, error) {
	result := make(map[string]json.RawMessage, len(c.unknownFields)+1)

	// Unknown values pass through as raw bytes; decoding them into any
	// would silently reformat number literals.
	for k, v := range c.unknownFields {
		result[k] = v
	}

	servers := c.Servers
	if servers == nil {
		servers = map[string]*Server{}
	}
	data, err := json.Marshal(servers)
	if err != nil {
		return nil, err
	}
	result[ServersKey] = data

	return json.Marshal(result)
}

// UnmarshalJSON implements json.Unmarshaler to capture unknown fields.
func (c *Config) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if serversData, ok := raw[ServersKey]; ok {
		if err := json.Unmarshal(serversData, &c.Servers); err != nil {
			return err
		}
		delete(raw, ServersKey)
	}

	if c.Servers == nil {
		c.Servers = make(map[string]*Server)
	}
	for name, server := range c.Servers {
		server.Name = name
	}

	if len(raw) > 0 {
		c.unknownFields = raw
	}

	return nil
}
