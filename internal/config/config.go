// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/apex/log"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/boytm/browser-llm-translation-plugin/internal/completion"
	"github.com/boytm/browser-llm-translation-plugin/internal/render"
	"github.com/boytm/browser-llm-translation-plugin/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Settings are the values a translation action reads. They mirror the
// extension's settings form one to one.
type Settings struct {
	Endpoint    string `toml:"endpoint" yaml:"endpoint" json:"endpoint" jsonschema:"title=Endpoint,description=OpenAI-compatible chat completions URL,format=uri"`
	APIKey      string `toml:"api_key" yaml:"api_key" json:"api_key" jsonschema:"title=API key,description=Sent as both Api-Key and Bearer authorization"`
	TargetMode  string `toml:"target_mode" yaml:"target_mode" json:"target_mode" jsonschema:"title=Target mode,enum=translate,enum=editing_assistant,default=translate"`
	ModelName   string `toml:"model_name" yaml:"model_name" json:"model_name,omitempty" jsonschema:"title=Model name,description=Omitted from the request when empty"`
	ReplaceText bool   `toml:"replace_text" yaml:"replace_text" json:"replace_text" jsonschema:"title=Replace selection,default=false"`
	StreamMode  bool   `toml:"stream_mode" yaml:"stream_mode" json:"stream_mode" jsonschema:"title=Stream response,default=true"`
}

// Config is the complete llmtrans configuration.
type Config struct {
	Settings `yaml:",inline"`

	// LogLevel is one of debug, info, warn, error, fatal.
	LogLevel string `toml:"log_level" yaml:"log_level" json:"log_level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,enum=fatal,default=info"`

	Server  ServerConfig  `toml:"server" yaml:"server" json:"server"`
	History HistoryConfig `toml:"history" yaml:"history" json:"history"`
	UI      UIConfig      `toml:"ui" yaml:"ui" json:"ui"`
}

// ServerConfig configures the local HTTP bridge used by browser hosts.
type ServerConfig struct {
	// Addr is the listen address; keep it on loopback.
	Addr string `toml:"addr" yaml:"addr" json:"addr" jsonschema:"default=127.0.0.1:8787"`
	// AuthToken, when set, is required as a bearer token on /v1/translate.
	AuthToken      string   `toml:"auth_token" yaml:"auth_token" json:"auth_token,omitempty"`
	AllowedOrigins []string `toml:"allowed_origins" yaml:"allowed_origins" json:"allowed_origins"`
	// RateLimit is requests per second per client IP. Zero disables limiting.
	RateLimit float64 `toml:"rate_limit" yaml:"rate_limit" json:"rate_limit" jsonschema:"minimum=0"`
	Burst     int     `toml:"burst" yaml:"burst" json:"burst" jsonschema:"minimum=0"`
}

// HistoryConfig configures the translation history store.
type HistoryConfig struct {
	Enabled bool `toml:"enabled" yaml:"enabled" json:"enabled"`
	// Path defaults to history.db in the config directory.
	Path string `toml:"path" yaml:"path" json:"path,omitempty"`
	// MaxEntries caps the store; zero keeps everything.
	MaxEntries int `toml:"max_entries" yaml:"max_entries" json:"max_entries" jsonschema:"minimum=0"`
}

// UIConfig configures the terminal editor.
type UIConfig struct {
	// Theme is "dark", "light" or "auto".
	Theme    string `toml:"theme" yaml:"theme" json:"theme" jsonschema:"enum=auto,enum=dark,enum=light"`
	TabWidth int    `toml:"tab_width" yaml:"tab_width" json:"tab_width" jsonschema:"minimum=1,maximum=16"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

const (
	DefaultServerAddr = "127.0.0.1:8787"
	DefaultMaxEntries = 1000
	DefaultLogLevel   = "info"
)

// Default returns a configuration with sensible defaults. Endpoint and key
// are left empty; a request made without them reports the missing-settings
// message instead of failing here.
func Default() *Config {
	return &Config{
		Settings: Settings{
			TargetMode:  completion.ModeTranslate.String(),
			ReplaceText: false,
			StreamMode:  true,
		},
		LogLevel: DefaultLogLevel,
		Server: ServerConfig{
			Addr:           DefaultServerAddr,
			AllowedOrigins: []string{"chrome-extension://*", "moz-extension://*"},
			RateLimit:      10,
			Burst:          20,
		},
		History: HistoryConfig{
			Enabled:    true,
			MaxEntries: DefaultMaxEntries,
		},
		UI: UIConfig{
			Theme:    "auto",
			TabWidth: 4,
		},
	}
}

// =============================================================================
// SETTINGS HELPERS
// =============================================================================

// Mode returns the parsed target mode.
func (s Settings) Mode() completion.TargetMode {
	return completion.ParseTargetMode(s.TargetMode)
}

// Target returns where results are rendered.
func (s Settings) Target() render.RenderTarget {
	return render.TargetFromSettings(s.ReplaceText)
}

// Configured reports whether both required settings are present.
func (s Settings) Configured() bool {
	return strings.TrimSpace(s.Endpoint) != "" && strings.TrimSpace(s.APIKey) != ""
}

// CompletionRequest builds the request for text from these settings.
func (s Settings) CompletionRequest(text string, stream bool) completion.Request {
	req := completion.NewRequest(s.Endpoint, s.APIKey, s.ModelName, s.Mode(), text)
	req.Stream = stream
	return req
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// HomeEnv overrides the configuration directory.
const HomeEnv = "LLMTRANS_HOME"

// ConfigDir returns the llmtrans configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".llmtrans"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	return inConfigDir("config.toml")
}

// HistoryPath returns the configured history database path.
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return c.History.Path, nil
	}
	return inConfigDir("history.db")
}

// LogPath returns the log file used while the terminal editor owns the screen.
func LogPath() (string, error) {
	return inConfigDir("llmtrans.log")
}

func inConfigDir(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// SECURITY: the config file holds the API key; keep it owner-only.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// candidateFiles are tried in order; the first one present wins.
var candidateFiles = []string{"config.toml", "config.yaml", "config.yml", "config.json"}

// Load loads configuration from the default directory.
func Load() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return LoadDir(dir)
}

// LoadDir loads the first config file found in dir, then a .env file in dir,
// then LLMTRANS_* environment overrides. Missing files leave the defaults.
func LoadDir(dir string) (*Config, error) {
	cfg := Default()

	for _, name := range candidateFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := decodeFile(cfg, path); err != nil {
			return nil, err
		}
		break
	}

	return finish(cfg, filepath.Join(dir, ".env"))
}

// LoadFromPath loads configuration from a specific file. The format is
// chosen by extension; anything unrecognised is read as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := decodeFile(cfg, path); err != nil {
		return nil, err
	}
	return finish(cfg, filepath.Join(filepath.Dir(path), ".env"))
}

func finish(cfg *Config, envFile string) (*Config, error) {
	if err := loadDotEnv(envFile); err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func decodeFile(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		log.WithError(err).WithField("path", path).Warn("CONFIG_PERMISSIONS")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		_, err = toml.Decode(string(data), cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// loadDotEnv exports variables from a .env file without overriding ones
// already set in the process environment.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// SetDefaults fills zero values that have no sensible zero meaning.
func (c *Config) SetDefaults() {
	d := Default()
	if strings.TrimSpace(c.TargetMode) == "" {
		c.TargetMode = d.TargetMode
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.AllowedOrigins == nil {
		c.Server.AllowedOrigins = d.Server.AllowedOrigins
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.UI.TabWidth == 0 {
		c.UI.TabWidth = d.UI.TabWidth
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTo saves the configuration to path in the format its extension names.
func SaveTo(cfg *Config, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return SaveJSON(cfg, path)
	case ".yaml", ".yml":
		return SaveYAML(cfg, path)
	default:
		return SaveTOML(cfg, path)
	}
}

// SaveTOML saves the configuration to a TOML file with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# llmtrans configuration file")
	fmt.Fprintln(&buf, "# Generated by llmtrans - edit with care")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return writeConfig(path, buf.Bytes())
}

// SaveYAML saves the configuration to a YAML file with 0600 permissions.
func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return writeConfig(path, data)
}

// SaveJSON saves the configuration to a JSON file with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return writeConfig(path, append(data, '\n'))
}

func writeConfig(path string, data []byte) error {
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks values that are present. Missing endpoint or key is not
// an error here: requests report it with the missing-settings message.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if ep := strings.TrimSpace(c.Endpoint); ep != "" {
		u, err := url.Parse(ep)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add("endpoint", "must be an http(s) URL, got %q", ep)
		}
	}

	switch strings.ToLower(strings.TrimSpace(c.TargetMode)) {
	case "", "translate", "editing_assistant", "editing-assistant", "editor":
	default:
		add("target_mode", "must be translate or editing_assistant, got %q", c.TargetMode)
	}

	if c.LogLevel != "" {
		if _, err := log.ParseLevel(c.LogLevel); err != nil {
			add("log_level", "unknown level %q", c.LogLevel)
		}
	}

	if c.Server.RateLimit < 0 {
		add("server.rate_limit", "must be >= 0")
	}
	if c.Server.Burst < 0 {
		add("server.burst", "must be >= 0")
	}
	if c.History.MaxEntries < 0 {
		add("history.max_entries", "must be >= 0")
	}

	switch c.UI.Theme {
	case "", "auto", "dark", "light":
	default:
		add("ui.theme", "must be auto, dark or light, got %q", c.UI.Theme)
	}
	if c.UI.TabWidth < 0 || c.UI.TabWidth > 16 {
		add("ui.tab_width", "must be between 1 and 16")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - LLMTRANS_ENDPOINT, LLMTRANS_API_KEY, LLMTRANS_TARGET_MODE, LLMTRANS_MODEL
//   - LLMTRANS_REPLACE_TEXT, LLMTRANS_STREAM_MODE: "1"/"true"/"yes" or "0"/"false"/"no"
//   - LLMTRANS_SERVER_ADDR, LLMTRANS_SERVER_TOKEN
//   - LLMTRANS_LOG_LEVEL
func (c *Config) ApplyEnvOverrides() {
	str := map[string]*string{
		"LLMTRANS_ENDPOINT":     &c.Endpoint,
		"LLMTRANS_API_KEY":      &c.APIKey,
		"LLMTRANS_TARGET_MODE":  &c.TargetMode,
		"LLMTRANS_MODEL":        &c.ModelName,
		"LLMTRANS_SERVER_ADDR":  &c.Server.Addr,
		"LLMTRANS_SERVER_TOKEN": &c.Server.AuthToken,
		"LLMTRANS_LOG_LEVEL":    &c.LogLevel,
	}
	for env, dst := range str {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}

	flags := map[string]*bool{
		"LLMTRANS_REPLACE_TEXT": &c.ReplaceText,
		"LLMTRANS_STREAM_MODE":  &c.StreamMode,
	}
	for env, dst := range flags {
		if v := os.Getenv(env); v != "" {
			if b, ok := parseBool(v); ok {
				*dst = b
			}
		}
	}
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g. "server.addr").
// Keys are the toml names.
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, strings.ReplaceAll(strings.ToLower(part), "-", "_"))
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown key: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("key %q is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("key '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// fieldByTag finds a field by toml name, descending into embedded structs.
func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Anonymous && sf.Type.Kind() == reflect.Struct {
			if f, ok := fieldByTag(v.Field(i), name); ok {
				return f, true
			}
			continue
		}
		if tomlName(sf) == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func tomlName(sf reflect.StructField) string {
	tag := sf.Tag.Get("toml")
	if idx := strings.Index(tag, ","); idx >= 0 {
		tag = tag[:idx]
	}
	if tag == "" {
		return strings.ToLower(sf.Name)
	}
	return tag
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strings.TrimSpace(strVal), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strings.TrimSpace(strVal), 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, ok := parseBool(strVal)
			if !ok {
				return fmt.Errorf("invalid boolean value: %q", strVal)
			}
			field.SetBool(boolVal)
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, s := range strings.Split(strVal, ",") {
					if s = strings.TrimSpace(s); s != "" {
						items = append(items, s)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && field.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}

	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys returns all configuration keys in dot notation.
func Keys() []string {
	var keys []string
	collectKeys(reflect.TypeOf(Config{}), "", &keys)
	return keys
}

func collectKeys(t reflect.Type, prefix string, keys *[]string) {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Anonymous && sf.Type.Kind() == reflect.Struct {
			collectKeys(sf.Type, prefix, keys)
			continue
		}
		name := prefix + tomlName(sf)
		if sf.Type.Kind() == reflect.Struct {
			collectKeys(sf.Type, name+".", keys)
			continue
		}
		*keys = append(*keys, name)
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Server.AllowedOrigins != nil {
		clone.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	}
	return &clone
}

// Redacted returns a copy safe to print: secrets are replaced by a short
// fingerprint so two keys can still be told apart.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	if safe.APIKey != "" {
		safe.APIKey = "sha256:" + completion.KeyFingerprint(safe.APIKey)
	}
	if safe.Server.AuthToken != "" {
		safe.Server.AuthToken = "[REDACTED]"
	}
	return safe
}

// String returns a redacted JSON rendering for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance, loading it on first
// access. Load failures fall back to defaults with a warning.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			log.WithError(err).Warn("CONFIG_LOAD_FAILED using defaults")
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state between tests.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
