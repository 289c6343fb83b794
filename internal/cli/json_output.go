// json_output.go - JSON output for scripting.
//
// Every command that supports --json prints one JSONResponse on stdout.
// Human-readable messages go to stderr in JSON mode.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package cli

import (
	"encoding/json"
	"time"
)

// JSONResponse is the response envelope for all CLI commands.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data interface{} `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// ErrorType classifies Error for scripts (configuration_error, network_error, ...)
	ErrorType string `json:"error_type,omitempty"`

	// Timestamp is the ISO8601 timestamp when the response was generated
	Timestamp string `json:"timestamp"`

	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print outputs the JSON response to stdout.
func (r *JSONResponse) Print() error {
	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(r)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// VersionData represents the data returned by the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}

// TranslateData represents the data returned by the translate command.
type TranslateData struct {
	Source     string `json:"source"`
	Text       string `json:"text"`
	Mode       string `json:"mode"`
	Model      string `json:"model,omitempty"`
	Streamed   bool   `json:"streamed"`
	Deltas     int    `json:"deltas,omitempty"`
	Diff       string `json:"diff,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// ConfigPathData represents the data returned by config path.
type ConfigPathData struct {
	Dir     string `json:"dir"`
	File    string `json:"file"`
	History string `json:"history"`
	Log     string `json:"log"`
}

// HistoryData represents the data returned by history list and search.
type HistoryData struct {
	Count   int         `json:"count"`
	Entries interface{} `json:"entries"`
}
