package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/BTreeMap/shiftengine/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// sessionRow is the column form of a SessionContext. Responses and metadata
// are stored as JSON documents.
type sessionRow struct {
	responsesJSON string
	metadataJSON  string
}

func encodeSession(c *models.SessionContext) (sessionRow, error) {
	responses := c.UserResponses
	if responses == nil {
		responses = map[models.StepID]string{}
	}
	rb, err := json.Marshal(responses)
	if err != nil {
		return sessionRow{}, fmt.Errorf("failed to marshal user responses: %w", err)
	}
	mb, err := json.Marshal(c.Metadata)
	if err != nil {
		return sessionRow{}, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return sessionRow{responsesJSON: string(rb), metadataJSON: string(mb)}, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const sessionColumns = `session_id, current_phase, current_step, work_type, selected_method,
	original_problem_statement, current_statement, goal_deadline, user_responses, metadata,
	completed, created_at, updated_at`

// scanSession scans a SessionContext from a row selected with sessionColumns.
func scanSession(row rowScanner) (*models.SessionContext, error) {
	var c models.SessionContext
	var workType, method, original, current sql.NullString
	var deadline, responsesJSON, metadataJSON sql.NullString
	err := row.Scan(
		&c.SessionID, &c.CurrentPhase, &c.CurrentStep, &workType, &method,
		&original, &current, &deadline, &responsesJSON, &metadataJSON,
		&c.Completed, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.WorkType = models.WorkType(workType.String)
	c.SelectedMethod = models.Method(method.String)
	c.OriginalProblemStatement = original.String
	c.CurrentStatement = current.String
	c.GoalDeadline = deadline.String

	c.UserResponses = make(map[models.StepID]string)
	if responsesJSON.String != "" {
		if err := json.Unmarshal([]byte(responsesJSON.String), &c.UserResponses); err != nil {
			return nil, fmt.Errorf("failed to unmarshal user responses: %w", err)
		}
	}
	if metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &c.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &c, nil
}

const interactionColumns = `session_id, step_id, input, classification, outcome, message, next_step, used_assist, created_at`

// scanInteraction scans an Interaction from a row selected with interactionColumns.
func scanInteraction(row rowScanner) (models.Interaction, error) {
	var it models.Interaction
	var input, classification, message sql.NullString
	err := row.Scan(
		&it.SessionID, &it.StepID, &input, &classification, &it.Outcome,
		&message, &it.NextStep, &it.UsedAssist, &it.CreatedAt,
	)
	if err != nil {
		return it, fmt.Errorf("scan interaction failed: %w", err)
	}
	it.Input = input.String
	it.Classification = classification.String
	it.Message = message.String
	return it, nil
}
