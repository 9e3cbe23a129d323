package transport

import (
	"fmt"
	"sort"
	"time"
)

const (
	// DefaultPipeTimeout bounds spawning a local server process.
	DefaultPipeTimeout = 10 * time.Second
	// DefaultNetworkTimeout bounds connecting to a remote server.
	DefaultNetworkTimeout = 30 * time.Second
	// DefaultPipeCommand runs Path when no Command is configured.
	DefaultPipeCommand = "python"
)

// ServerConfig describes one tool server. Name is the unique key.
type ServerConfig struct {
	Name      string            `mapstructure:"name" json:"name"`
	Transport string            `mapstructure:"transport" json:"transport"`
	Command   string            `mapstructure:"command" json:"command,omitempty"`
	Args      []string          `mapstructure:"args" json:"args,omitempty"`
	Path      string            `mapstructure:"path" json:"path,omitempty"`
	Env       map[string]string `mapstructure:"env" json:"env,omitempty"`
	URL       string            `mapstructure:"url" json:"url,omitempty"`
	Headers   map[string]string `mapstructure:"headers" json:"headers,omitempty"`
	Enabled   *bool             `mapstructure:"enabled" json:"enabled,omitempty"`
	Timeout   time.Duration     `mapstructure:"timeout" json:"timeout,omitempty"`
}

// IsEnabled reports whether the server should be connected. Unset means yes.
func (c ServerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Kind returns the parsed transport kind.
func (c ServerConfig) Kind() (Kind, error) {
	return ParseKind(c.Transport)
}

// ConnectTimeout returns the per-server override or the default for its kind.
func (c ServerConfig) ConnectTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	if k, err := c.Kind(); err == nil && k == KindPipe {
		return DefaultPipeTimeout
	}
	return DefaultNetworkTimeout
}

// PipeCommand resolves the program and arguments for a pipe server. A bare
// Path runs under the default interpreter with the path as first argument.
func (c ServerConfig) PipeCommand() (string, []string) {
	cmd := c.Command
	args := append([]string(nil), c.Args...)
	if c.Path != "" {
		if cmd == "" {
			cmd = DefaultPipeCommand
		}
		args = append([]string{c.Path}, args...)
	}
	return cmd, args
}

// EnvList renders Env as KEY=VALUE pairs.
func (c ServerConfig) EnvList() []string {
	if len(c.Env) == 0 {
		return nil
	}
	out := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// Validate checks the fields each transport kind requires.
func (c ServerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	k, err := c.Kind()
	if err != nil {
		return fmt.Errorf("%w: server %q: %v", ErrInvalidConfig, c.Name, err)
	}
	switch k {
	case KindPipe:
		if c.Command == "" && c.Path == "" {
			return fmt.Errorf("%w: server %q: pipe transport needs command or path", ErrInvalidConfig, c.Name)
		}
	default:
		if c.URL == "" {
			return fmt.Errorf("%w: server %q: %s transport needs url", ErrInvalidConfig, c.Name, k)
		}
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: server %q: timeout must not be negative", ErrInvalidConfig, c.Name)
	}
	return nil
}
