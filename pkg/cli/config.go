package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
)

const (
	// DefaultBaseDir is the base configuration directory name
	DefaultBaseDir = ".giztoy"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.yaml"
)

// ErrNoCredentialSource is returned by Validate when a context has
// neither an API key nor a mediator URL.
var ErrNoCredentialSource = errors.New("context needs api_key or mediator_url")

// Config represents the main configuration structure for a CLI app
type Config struct {
	// AppName is the application name (e.g., "rtvoice")
	AppName string `yaml:"-"`

	// CurrentContext is the name of the currently active context
	CurrentContext string `yaml:"current_context,omitempty"`

	// Contexts is a map of context name to context configuration
	Contexts map[string]*Context `yaml:"contexts,omitempty"`

	// configPath is the path to the config file
	configPath string
}

// Context is one named session profile.
type Context struct {
	Name string `yaml:"name" json:"name"`

	// APIKey mints ephemeral credentials directly. Only for trusted
	// machines; prefer MediatorURL.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty"`

	// MediatorURL is the application endpoint that returns an ephemeral
	// credential. It takes precedence over APIKey.
	MediatorURL string `yaml:"mediator_url,omitempty" json:"mediator_url,omitempty"`

	// TokenPath is the jq expression selecting the token in the mediator
	// response. Default: .client_secret.value
	TokenPath string `yaml:"token_path,omitempty" json:"token_path,omitempty"`

	// BaseURL overrides the API base URL used for minting and signaling.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`

	Model        string `yaml:"model,omitempty" json:"model,omitempty"`
	Voice        string `yaml:"voice,omitempty" json:"voice,omitempty"`
	Instructions string `yaml:"instructions,omitempty" json:"instructions,omitempty"`

	// Transport is "webrtc" (default) or "websocket".
	Transport string `yaml:"transport,omitempty" json:"transport,omitempty"`

	// PreOpen is "drop" (default) or "queue".
	PreOpen string `yaml:"pre_open,omitempty" json:"pre_open,omitempty"`

	// ICEServers are STUN/TURN URLs for the WebRTC transport.
	ICEServers []string `yaml:"ice_servers,omitempty" json:"ice_servers,omitempty"`

	// Timeout is the session init timeout in seconds (optional)
	Timeout int `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// LoadConfig loads or creates configuration for the specified app
func LoadConfig(appName string) (*Config, error) {
	return LoadConfigWithPath(appName, "")
}

// LoadConfigWithPath loads configuration from a custom path
func LoadConfigWithPath(appName, customPath string) (*Config, error) {
	var configPath string

	if customPath != "" {
		configPath = customPath
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, DefaultBaseDir, appName, DefaultConfigFile)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := &Config{
		AppName:    appName,
		Contexts:   make(map[string]*Context),
		configPath: configPath,
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Save()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]*Context)
	}
	for name, ctx := range cfg.Contexts {
		if ctx == nil {
			cfg.Contexts[name] = &Context{Name: name}
			continue
		}
		ctx.Name = name
	}

	cfg.AppName = appName
	cfg.configPath = configPath

	return cfg, nil
}

// Save saves the configuration to disk. The file holds API keys and is
// written owner-only.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Path returns the config file path
func (c *Config) Path() string {
	return c.configPath
}

// AddContext adds or replaces a context
func (c *Config) AddContext(name string, ctx *Context) error {
	if name == "" {
		return fmt.Errorf("context name is required")
	}
	if err := ctx.Validate(); err != nil {
		return fmt.Errorf("context %q: %w", name, err)
	}
	ctx.Name = name
	c.Contexts[name] = ctx
	return c.Save()
}

// DeleteContext removes a context
func (c *Config) DeleteContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return c.Save()
}

// UseContext sets the current context
func (c *Config) UseContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	c.CurrentContext = name
	return c.Save()
}

// GetContext returns a specific context
func (c *Config) GetContext(name string) (*Context, error) {
	ctx, ok := c.Contexts[name]
	if !ok {
		return nil, fmt.Errorf("context %q not found", name)
	}
	return ctx, nil
}

// GetCurrentContext returns the current context
func (c *Config) GetCurrentContext() (*Context, error) {
	if c.CurrentContext == "" {
		return nil, fmt.Errorf("no current context set")
	}
	return c.GetContext(c.CurrentContext)
}

// ResolveContext returns the context by name, or current context if name is empty
func (c *Config) ResolveContext(name string) (*Context, error) {
	if name == "" {
		return c.GetCurrentContext()
	}
	return c.GetContext(name)
}

// ListContexts returns all context names, sorted.
func (c *Config) ListContexts() []string {
	names := make([]string, 0, len(c.Contexts))
	for name := range c.Contexts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Validate checks that the context has a credential source.
func (ctx *Context) Validate() error {
	if ctx.APIKey == "" && ctx.MediatorURL == "" {
		return ErrNoCredentialSource
	}
	return nil
}

// Redacted returns a copy safe to print.
func (ctx *Context) Redacted() *Context {
	out := *ctx
	out.APIKey = MaskAPIKey(ctx.APIKey)
	out.ICEServers = slices.Clone(ctx.ICEServers)
	return &out
}

// MaskAPIKey masks the API key for display
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
