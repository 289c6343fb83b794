// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"net/url"
	"strings"
)

// =============================================================================
// TARGET MODE
// =============================================================================

// TargetMode selects the system prompt sent with a request.
type TargetMode int

const (
	// ModeTranslate asks for a zh<->en translation. It is the default.
	ModeTranslate TargetMode = iota

	// ModeEditingAssistant asks for an editorial cleanup of the text.
	ModeEditingAssistant
)

// String returns the settings value for the mode.
func (m TargetMode) String() string {
	switch m {
	case ModeEditingAssistant:
		return "editing_assistant"
	default:
		return "translate"
	}
}

// ParseTargetMode maps a settings value to a TargetMode.
// Unknown and empty values fall back to ModeTranslate.
func ParseTargetMode(s string) TargetMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "editing_assistant", "editing-assistant", "editor":
		return ModeEditingAssistant
	default:
		return ModeTranslate
	}
}

const (
	editingPrompt   = "你是一个专业的编辑助手。请将以下文本修改得更加清晰、专业，适合用于官方文档。请直接输出修改后的文本，不要包含任何额外的评论或解释。"
	translatePrompt = "你是一个专业的翻译引擎。请翻译以下文本。如果是中文，请翻译成英文；如果是英文，请翻译成中文。请直接输出翻译结果，不要包含任何额外的评论或解释。"
)

// SystemPrompt returns the instruction for mode. Every mode other than
// ModeEditingAssistant gets the bidirectional translate instruction.
func SystemPrompt(mode TargetMode) string {
	if mode == ModeEditingAssistant {
		return editingPrompt
	}
	return translatePrompt
}

// =============================================================================
// REQUEST
// =============================================================================

// Request is everything needed for one completion call.
type Request struct {
	Endpoint     string
	APIKey       string
	ModelName    string // optional; omitted from the body when empty
	SystemPrompt string
	UserText     string
	Stream       bool
}

// NewRequest builds a buffered request with the system prompt resolved from mode.
func NewRequest(endpoint, apiKey, modelName string, mode TargetMode, text string) Request {
	return Request{
		Endpoint:     strings.TrimSpace(endpoint),
		APIKey:       strings.TrimSpace(apiKey),
		ModelName:    strings.TrimSpace(modelName),
		SystemPrompt: SystemPrompt(mode),
		UserText:     text,
	}
}

// Validate reports every missing or unusable field at once.
func (r Request) Validate() error {
	var missing []string
	if r.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if r.APIKey == "" {
		missing = append(missing, "api_key")
	}
	if r.SystemPrompt == "" {
		missing = append(missing, "system_prompt")
	}
	if strings.TrimSpace(r.UserText) == "" {
		missing = append(missing, "text")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}

	u, err := url.Parse(r.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ConfigurationError{Reason: "endpoint must be an http(s) URL"}
	}
	return nil
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// ChatMessage is a single message in the request body.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the JSON body. Model and Stream are only sent when set.
type chatRequest struct {
	Model    string        `json:"model,omitempty"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

func (r Request) body() chatRequest {
	return chatRequest{
		Model: r.ModelName,
		Messages: []ChatMessage{
			{Role: "system", Content: r.SystemPrompt},
			{Role: "user", Content: r.UserText},
		},
		Stream: r.Stream,
	}
}

// chatResponse is the buffered response. Content is a pointer so a missing
// field is distinguishable from an empty answer.
type chatResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// content extracts choices[0].message.content.
func (r *chatResponse) content() (string, bool) {
	if len(r.Choices) == 0 || r.Choices[0].Message == nil || r.Choices[0].Message.Content == nil {
		return "", false
	}
	return *r.Choices[0].Message.Content, true
}

// StreamChunk is one decoded "data:" event of a streamed response.
type StreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason,omitempty"`
	} `json:"choices"`
}

// GetContent returns choices[0].delta.content, or "" when absent.
func (c *StreamChunk) GetContent() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// apiErrorResponse is the OpenAI-style error body some gateways return.
type apiErrorResponse struct {
	Error struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
