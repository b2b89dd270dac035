package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var ErrUnauthorized = errors.New("unauthorized")

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// APIError is returned for any non 2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

// Is makes errors.Is(err, ErrUnauthorized) true for 401 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// newAPIError reads and normalises the error body of resp.
func newAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    errorMessage(body, resp.Status),
	}
}

// errorMessage extracts a readable message from an error payload. The API
// reports errors as {"detail": "..."}, {"detail": [{"msg": "..."}]} or
// {"message": "..."}.
func errorMessage(body []byte, fallback string) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message json.RawMessage `json:"message"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		if text := strings.TrimSpace(string(body)); text != "" && len(text) < 512 {
			return text
		}
		return fallback
	}

	for _, raw := range []json.RawMessage{payload.Detail, payload.Message} {
		if msg := rawMessage(raw); msg != "" {
			return msg
		}
	}

	return fallback
}

func rawMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			parts = append(parts, itemMessage(item))
		}
		return strings.Join(parts, " | ")
	}

	return string(raw)
}

func itemMessage(item json.RawMessage) string {
	var entry struct {
		Msg    string `json:"msg"`
		Detail string `json:"detail"`
	}

	if err := json.Unmarshal(item, &entry); err == nil {
		switch {
		case entry.Msg != "":
			return entry.Msg
		case entry.Detail != "":
			return entry.Detail
		}
	}

	var text string
	if err := json.Unmarshal(item, &text); err == nil {
		return text
	}

	return string(item)
}
