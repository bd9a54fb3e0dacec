package chat

import (
	"encoding/json"
	"fmt"
)

// Extraction is the structured payload the model must return every turn.
type Extraction struct {
	Message           string         `json:"message"`
	Fields            map[string]any `json:"extracted_data"`
	IsComplete        bool           `json:"is_complete"`
	FollowUpQuestions []string       `json:"follow_up_questions"`
}

// ExtractionFormat describes the Extraction shape as a structured-output
// response format. The schema is fixed: the target form's own schema travels
// in the system prompt, not here, so the model is free to return partial
// field patches.
func ExtractionFormat() *ResponseFormat {
	return &ResponseFormat{
		Name:   "chat_response",
		Strict: true,
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{
					"type":        "string",
					"description": "Conversational response to the user",
				},
				"extracted_data": map[string]any{
					"type":        "object",
					"description": "Extracted structured data from the conversation",
				},
				"is_complete": map[string]any{
					"type":        "boolean",
					"description": "Whether all required fields have been filled",
				},
				"follow_up_questions": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Questions to ask for missing information",
				},
			},
			"required": []string{"message", "extracted_data", "is_complete", "follow_up_questions"},
		},
	}
}

func decodeExtraction(raw string) (Extraction, error) {
	var out Extraction
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return Extraction{}, &ServiceError{
			Message: fmt.Sprintf("model response is not valid extraction JSON: %v", err),
			Err:     err,
		}
	}
	return out, nil
}
