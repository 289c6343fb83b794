// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTargetMode(t *testing.T) {
	tests := []struct {
		in   string
		want TargetMode
	}{
		{"editing_assistant", ModeEditingAssistant},
		{"Editing-Assistant", ModeEditingAssistant},
		{" editor ", ModeEditingAssistant},
		{"translate", ModeTranslate},
		{"", ModeTranslate},
		{"something-else", ModeTranslate},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTargetMode(tt.in))
		})
	}
}

func TestSystemPrompt(t *testing.T) {
	assert.Contains(t, SystemPrompt(ModeEditingAssistant), "编辑助手")
	assert.Contains(t, SystemPrompt(ModeTranslate), "翻译引擎")
	// Any mode that is not the editing assistant translates.
	assert.Equal(t, SystemPrompt(ModeTranslate), SystemPrompt(TargetMode(42)))
}

func TestRequestValidate(t *testing.T) {
	valid := NewRequest("https://api.example.com/v1/chat/completions", "sk-test", "", ModeTranslate, "hello")
	require.NoError(t, valid.Validate())

	t.Run("missing endpoint and key", func(t *testing.T) {
		req := NewRequest("", " ", "", ModeTranslate, "hello")
		err := req.Validate()

		var cfgErr *ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, []string{"endpoint", "api_key"}, cfgErr.Missing)
		assert.Equal(t, MissingConfigMessage, cfgErr.UserMessage())
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("missing prompt", func(t *testing.T) {
		req := valid
		req.SystemPrompt = ""
		var cfgErr *ConfigurationError
		require.ErrorAs(t, req.Validate(), &cfgErr)
		assert.Equal(t, []string{"system_prompt"}, cfgErr.Missing)
	})

	t.Run("blank text", func(t *testing.T) {
		req := valid
		req.UserText = "  \n"
		assert.ErrorIs(t, req.Validate(), ErrConfiguration)
	})

	t.Run("non http endpoint", func(t *testing.T) {
		req := valid
		req.Endpoint = "ftp://example.com"
		assert.ErrorIs(t, req.Validate(), ErrConfiguration)
	})
}

func TestRequestBody(t *testing.T) {
	req := NewRequest("https://x", "k", "", ModeTranslate, "hi")
	data, err := json.Marshal(req.body())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	_, hasModel := raw["model"]
	_, hasStream := raw["stream"]
	assert.False(t, hasModel, "model is omitted when unset")
	assert.False(t, hasStream, "stream is omitted in buffered mode")

	req.ModelName = "gpt-4o-mini"
	req.Stream = true
	data, err = json.Marshal(req.body())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"model": "gpt-4o-mini",
		"messages": [
			{"role": "system", "content": "`+SystemPrompt(ModeTranslate)+`"},
			{"role": "user", "content": "hi"}
		],
		"stream": true
	}`, string(data))
}
