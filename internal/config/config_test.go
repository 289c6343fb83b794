// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boytm/browser-llm-translation-plugin/internal/completion"
	"github.com/boytm/browser-llm-translation-plugin/internal/render"
)

// isolate points the config directory at a temp dir and blanks every
// override so the developer's environment cannot leak into a test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(HomeEnv, dir)
	for _, env := range []string{
		"LLMTRANS_ENDPOINT", "LLMTRANS_API_KEY", "LLMTRANS_TARGET_MODE", "LLMTRANS_MODEL",
		"LLMTRANS_REPLACE_TEXT", "LLMTRANS_STREAM_MODE", "LLMTRANS_SERVER_ADDR",
		"LLMTRANS_SERVER_TOKEN", "LLMTRANS_LOG_LEVEL",
	} {
		t.Setenv(env, "")
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

// TestConfig_ConcurrentAccess tests that Global(), SetGlobal(), and ReloadGlobal()
// can be safely called concurrently without race conditions.
// Run with: go test -race -v ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			c := Default()
			c.ModelName = "test-model"
			SetGlobal(c)
		}()
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
		go func() {
			defer wg.Done()
			_ = ReloadGlobal()
		}()
	}
	wg.Wait()
}

func TestConfig_GlobalInitialization(t *testing.T) {
	dir := isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	writeFile(t, filepath.Join(dir, "config.toml"), `endpoint = "https://api.example.com/v1/chat/completions"`)

	cfg := Global()
	require.NotNil(t, cfg)
	assert.Equal(t, "https://api.example.com/v1/chat/completions", cfg.Endpoint)
	assert.Same(t, cfg, Global(), "Global should return the cached instance")
}

func TestConfig_GlobalFallsBackToDefaults(t *testing.T) {
	dir := isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	writeFile(t, filepath.Join(dir, "config.toml"), `endpoint = [broken`)

	cfg := Global()
	require.NotNil(t, cfg)
	assert.Equal(t, Default().Server.Addr, cfg.Server.Addr)
}

func TestConfig_SetGlobalBeforeGlobal(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	c := Default()
	c.ModelName = "pinned"
	SetGlobal(c)
	assert.Equal(t, "pinned", Global().ModelName)
}

func TestConfig_Default(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "translate", cfg.TargetMode)
	assert.True(t, cfg.StreamMode, "stream mode defaults on")
	assert.False(t, cfg.ReplaceText, "replace defaults off")
	assert.Empty(t, cfg.Endpoint)
	assert.Empty(t, cfg.APIKey)
	assert.Equal(t, DefaultServerAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultMaxEntries, cfg.History.MaxEntries)
	assert.NoError(t, cfg.Validate())
	assert.False(t, cfg.Configured())
}

func TestSettings_Helpers(t *testing.T) {
	s := Settings{
		Endpoint:    " https://api.example.com/v1/chat/completions ",
		APIKey:      "sk-test",
		TargetMode:  "editing_assistant",
		ModelName:   "gpt-4o-mini",
		ReplaceText: true,
	}

	assert.True(t, s.Configured())
	assert.Equal(t, completion.ModeEditingAssistant, s.Mode())
	assert.Equal(t, render.TargetReplaceSelection, s.Target())

	req := s.CompletionRequest("hello", true)
	assert.Equal(t, "https://api.example.com/v1/chat/completions", req.Endpoint)
	assert.Equal(t, "sk-test", req.APIKey)
	assert.Equal(t, "gpt-4o-mini", req.ModelName)
	assert.Equal(t, completion.SystemPrompt(completion.ModeEditingAssistant), req.SystemPrompt)
	assert.Equal(t, "hello", req.UserText)
	assert.True(t, req.Stream)

	s.ReplaceText = false
	s.TargetMode = "something-else"
	assert.Equal(t, render.TargetFloatingPanel, s.Target())
	assert.Equal(t, completion.ModeTranslate, s.Mode())
}

func TestSettings_MissingValuesSurfaceAtRequestTime(t *testing.T) {
	req := Default().CompletionRequest("hello", false)

	err := req.Validate()
	var cfgErr *completion.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, completion.MissingConfigMessage, cfgErr.UserMessage())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		fields []string
	}{
		{name: "valid default config", mutate: func(c *Config) {}},
		{name: "missing endpoint and key is fine", mutate: func(c *Config) { c.Endpoint, c.APIKey = "", "" }},
		{name: "https endpoint", mutate: func(c *Config) { c.Endpoint = "https://api.example.com/v1/chat/completions" }},
		{name: "ftp endpoint", mutate: func(c *Config) { c.Endpoint = "ftp://example.com" }, fields: []string{"endpoint"}},
		{name: "bare host endpoint", mutate: func(c *Config) { c.Endpoint = "example.com/v1" }, fields: []string{"endpoint"}},
		{name: "unknown target mode", mutate: func(c *Config) { c.TargetMode = "summarize" }, fields: []string{"target_mode"}},
		{name: "unknown log level", mutate: func(c *Config) { c.LogLevel = "chatty" }, fields: []string{"log_level"}},
		{name: "negative rate limit", mutate: func(c *Config) { c.Server.RateLimit = -1 }, fields: []string{"server.rate_limit"}},
		{name: "negative max entries", mutate: func(c *Config) { c.History.MaxEntries = -5 }, fields: []string{"history.max_entries"}},
		{name: "invalid theme", mutate: func(c *Config) { c.UI.Theme = "neon" }, fields: []string{"ui.theme"}},
		{
			name: "several at once",
			mutate: func(c *Config) {
				c.Endpoint = "nope"
				c.Server.Burst = -1
			},
			fields: []string{"endpoint", "server.burst"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if len(tt.fields) == 0 {
				assert.NoError(t, err)
				return
			}
			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs), "want ValidateErrors, got %v", err)
			var got []string
			for _, v := range verrs {
				got = append(got, v.Field)
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestLoadDir_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "config.toml",
			content: `endpoint = "https://api.example.com/v1/chat/completions"
api_key = "sk-toml"
target_mode = "editing_assistant"
stream_mode = false

[server]
addr = "127.0.0.1:9999"
`,
		},
		{
			name: "yaml",
			file: "config.yaml",
			content: `endpoint: https://api.example.com/v1/chat/completions
api_key: sk-toml
target_mode: editing_assistant
stream_mode: false
server:
  addr: 127.0.0.1:9999
`,
		},
		{
			name: "json",
			file: "config.json",
			content: `{"endpoint":"https://api.example.com/v1/chat/completions","api_key":"sk-toml",
"target_mode":"editing_assistant","stream_mode":false,"server":{"addr":"127.0.0.1:9999"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			writeFile(t, filepath.Join(dir, tt.file), tt.content)

			cfg, err := LoadDir(dir)
			require.NoError(t, err)
			assert.Equal(t, "https://api.example.com/v1/chat/completions", cfg.Endpoint)
			assert.Equal(t, "sk-toml", cfg.APIKey)
			assert.Equal(t, completion.ModeEditingAssistant, cfg.Mode())
			assert.False(t, cfg.StreamMode)
			assert.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
			// Untouched sections keep their defaults.
			assert.Equal(t, DefaultMaxEntries, cfg.History.MaxEntries)
			assert.Equal(t, 4, cfg.UI.TabWidth)
		})
	}
}

func TestLoadDir_TOMLWinsOverJSON(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.toml"), `model_name = "from-toml"`)
	writeFile(t, filepath.Join(dir, "config.json"), `{"model_name":"from-json"}`)

	cfg, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-toml", cfg.ModelName)
}

func TestLoadDir_NoFilesGivesDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadDir_InvalidFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.toml"), `endpoint = "ftp://nope"`)

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint")
}

func TestLoadDir_FixesPermissions(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`api_key = "sk"`), 0644))

	_, err := LoadDir(dir)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestApplyEnvOverrides(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.toml"), `
endpoint = "https://file.example.com/v1/chat/completions"
replace_text = false
stream_mode = true
`)
	t.Setenv("LLMTRANS_ENDPOINT", "https://env.example.com/v1/chat/completions")
	t.Setenv("LLMTRANS_API_KEY", "sk-env")
	t.Setenv("LLMTRANS_MODEL", "env-model")
	t.Setenv("LLMTRANS_REPLACE_TEXT", "yes")
	t.Setenv("LLMTRANS_STREAM_MODE", "0")
	t.Setenv("LLMTRANS_SERVER_TOKEN", "tok")
	t.Setenv("LLMTRANS_LOG_LEVEL", "debug")

	cfg, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com/v1/chat/completions", cfg.Endpoint)
	assert.Equal(t, "sk-env", cfg.APIKey)
	assert.Equal(t, "env-model", cfg.ModelName)
	assert.True(t, cfg.ReplaceText)
	assert.False(t, cfg.StreamMode)
	assert.Equal(t, "tok", cfg.Server.AuthToken)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestApplyEnvOverrides_IgnoresUnparseableBool(t *testing.T) {
	isolate(t)
	t.Setenv("LLMTRANS_STREAM_MODE", "maybe")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.True(t, cfg.StreamMode)
}

func TestLoadDir_DotEnv(t *testing.T) {
	dir := isolate(t)
	// Set by godotenv, so it has to be cleared by hand.
	require.NoError(t, os.Unsetenv("LLMTRANS_API_KEY"))
	t.Cleanup(func() { os.Unsetenv("LLMTRANS_API_KEY") })
	t.Setenv("LLMTRANS_MODEL", "from-process")

	writeFile(t, filepath.Join(dir, ".env"), "LLMTRANS_API_KEY=sk-dotenv\nLLMTRANS_MODEL=from-dotenv\n")

	cfg, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "sk-dotenv", cfg.APIKey)
	assert.Equal(t, "from-process", cfg.ModelName, ".env must not override the process environment")
}

func TestSave_RoundTripsEveryFormat(t *testing.T) {
	for _, name := range []string{"config.toml", "config.yaml", "config.json"} {
		t.Run(name, func(t *testing.T) {
			isolate(t)
			path := filepath.Join(t.TempDir(), "nested", name)

			cfg := Default()
			cfg.Endpoint = "https://api.example.com/v1/chat/completions"
			cfg.APIKey = "sk-save"
			cfg.ReplaceText = true
			cfg.Server.AllowedOrigins = []string{"chrome-extension://abc"}
			require.NoError(t, SaveTo(cfg, path))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

			loaded, err := LoadFromPath(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestSaveTOML_WritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# llmtrans configuration file")
	assert.Contains(t, string(data), `target_mode = "translate"`)
}

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	val, err := cfg.Get("target_mode")
	require.NoError(t, err)
	assert.Equal(t, "translate", val)

	require.NoError(t, cfg.Set("server.addr", "127.0.0.1:1234"))
	val, err = cfg.Get("server.addr")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:1234", val)

	tests := []struct {
		key   string
		value interface{}
		check func(*Config) bool
	}{
		{"stream_mode", "false", func(c *Config) bool { return !c.StreamMode }},
		{"replace-text", "true", func(c *Config) bool { return c.ReplaceText }},
		{"history.max_entries", "50", func(c *Config) bool { return c.History.MaxEntries == 50 }},
		{"server.rate_limit", "2.5", func(c *Config) bool { return c.Server.RateLimit == 2.5 }},
		{"server.burst", 7, func(c *Config) bool { return c.Server.Burst == 7 }},
		{"server.allowed_origins", "chrome-extension://a, moz-extension://b", func(c *Config) bool {
			return len(c.Server.AllowedOrigins) == 2 && c.Server.AllowedOrigins[1] == "moz-extension://b"
		}},
		{"API_KEY", "sk-upper", func(c *Config) bool { return c.APIKey == "sk-upper" }},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			require.NoError(t, cfg.Set(tt.key, tt.value))
			assert.True(t, tt.check(cfg))
		})
	}
}

func TestConfig_GetSetErrors(t *testing.T) {
	cfg := Default()

	_, err := cfg.Get("invalid.key")
	assert.Error(t, err)
	_, err = cfg.Get("")
	assert.Error(t, err)
	_, err = cfg.Get("server")
	assert.Error(t, err, "sections are not values")
	_, err = cfg.Get("endpoint.nested")
	assert.Error(t, err)

	assert.Error(t, cfg.Set("stream_mode", "perhaps"))
	assert.Error(t, cfg.Set("history.max_entries", "many"))
	assert.Error(t, cfg.Set("endpoint", 42))
}

func TestKeys(t *testing.T) {
	keys := Keys()

	assert.Contains(t, keys, "endpoint")
	assert.Contains(t, keys, "api_key")
	assert.Contains(t, keys, "stream_mode")
	assert.Contains(t, keys, "server.addr")
	assert.Contains(t, keys, "history.max_entries")
	assert.Contains(t, keys, "ui.tab_width")
	assert.NotContains(t, keys, "server")

	cfg := Default()
	for _, k := range keys {
		_, err := cfg.Get(k)
		assert.NoError(t, err, k)
	}
}

func TestConfig_CloneAndRedacted(t *testing.T) {
	original := Default()
	original.APIKey = "sk-secret"
	original.Server.AuthToken = "tok-secret"

	clone := original.Clone()
	clone.Server.AllowedOrigins[0] = "changed"
	assert.NotEqual(t, "changed", original.Server.AllowedOrigins[0])

	red := original.Redacted()
	assert.Equal(t, "sha256:"+completion.KeyFingerprint("sk-secret"), red.APIKey)
	assert.Equal(t, "[REDACTED]", red.Server.AuthToken)
	assert.Equal(t, "sk-secret", original.APIKey)

	s := original.String()
	assert.NotContains(t, s, "sk-secret")
	assert.NotContains(t, s, "tok-secret")
}

func TestSchema(t *testing.T) {
	data, err := Schema()
	require.NoError(t, err)

	var doc struct {
		ID         string                     `json:"$id"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, SchemaID, doc.ID)
	for _, key := range []string{"endpoint", "api_key", "target_mode", "stream_mode", "server", "history"} {
		assert.Contains(t, doc.Properties, key)
	}
}
