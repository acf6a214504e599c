package models

import (
	"fmt"
	"strings"
	"time"
)

// TurnResult is what continueSession reports back to the caller.
type TurnResult struct {
	SessionID            string       `json:"session_id"`
	Message              string       `json:"message"`
	NextStep             StepID       `json:"next_step"`
	ExpectedResponseType ResponseType `json:"expected_response_type"`
	CanContinue          bool         `json:"can_continue"`
	UsedAssist           bool         `json:"used_assist"`
}

// TurnOutcome labels how a turn ended, for history and metrics.
type TurnOutcome string

// Turn outcome constants.
const (
	OutcomeAdvanced      TurnOutcome = "advanced"
	OutcomeClarification TurnOutcome = "clarification"
	OutcomeCompleted     TurnOutcome = "completed"
	OutcomeFailed        TurnOutcome = "failed"
)

// Interaction is one history row appended after every turn.
type Interaction struct {
	SessionID      string      `json:"session_id"`
	StepID         StepID      `json:"step_id"`
	Input          string      `json:"input"`
	Classification string      `json:"classification"`
	Outcome        TurnOutcome `json:"outcome"`
	Message        string      `json:"message"`
	NextStep       StepID      `json:"next_step"`
	UsedAssist     bool        `json:"used_assist"`
	CreatedAt      time.Time   `json:"created_at"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusRetry indicates the request may be retried unchanged.
	APIStatusRetry APIStatus = "retry"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().WithStatus(APIStatusOK).WithResult(result).Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().WithStatus(APIStatusError).WithMessage(message).Build()
}

// MaxInputLength caps a single turn's input accepted by the harness API.
const MaxInputLength = 4000

// StartSessionRequest is the body of POST /sessions. SessionID is optional.
type StartSessionRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

// Validate checks the optional session id.
func (r StartSessionRequest) Validate() error {
	if len(r.SessionID) > 128 {
		return fmt.Errorf("session_id must be at most 128 characters")
	}
	if strings.ContainsAny(r.SessionID, "/ \t\r\n") {
		return fmt.Errorf("session_id must not contain slashes or whitespace")
	}
	return nil
}

// TurnRequest is the body of POST /sessions/{id}/turns.
type TurnRequest struct {
	Input string `json:"input"`
}

// Validate checks the turn input size. Content is left to the engine.
func (r TurnRequest) Validate() error {
	if len(r.Input) > MaxInputLength {
		return fmt.Errorf("input must be at most %d bytes", MaxInputLength)
	}
	return nil
}
