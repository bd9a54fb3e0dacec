package server

import (
	"time"

	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/session"
)

// SchemaParseRequest asks for a definition document to be normalized.
// OperationID selects an OpenAPI operation; plain JSON Schema ignores it.
type SchemaParseRequest struct {
	ModelName       string `json:"model_name"`
	ModelDefinition string `json:"model_definition"`
	OperationID     string `json:"operation_id,omitempty"`
}

// SchemaParseResponse carries the UI-facing projection of the parsed schema.
type SchemaParseResponse struct {
	ModelName    string      `json:"model_name"`
	Schema       *SchemaView `json:"schema"`
	Success      bool        `json:"success"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// SchemaView is the wire projection of a SchemaDescriptor. Fields stay in
// declaration order; nested fields embed a full sub-schema.
type SchemaView struct {
	ModelName   string      `json:"model_name"`
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Fields      []FieldView `json:"fields"`
}

// FieldView is the wire projection of one field descriptor.
type FieldView struct {
	Name         string      `json:"name"`
	Type         string      `json:"type"`
	Required     bool        `json:"required"`
	Default      any         `json:"default,omitempty"`
	Description  string      `json:"description,omitempty"`
	Options      []string    `json:"options,omitempty"`
	NestedSchema *SchemaView `json:"nested_schema,omitempty"`
}

// NewSchemaView projects a descriptor into the wire shape.
func NewSchemaView(descriptor schema.SchemaDescriptor) *SchemaView {
	return &SchemaView{
		ModelName:   descriptor.Name,
		Title:       descriptor.Title,
		Description: descriptor.Description,
		Fields:      fieldViews(descriptor.Fields),
	}
}

func fieldViews(fields []schema.FieldDescriptor) []FieldView {
	views := make([]FieldView, 0, len(fields))
	for _, field := range fields {
		view := FieldView{
			Name:        field.Name,
			Type:        string(field.Kind),
			Required:    field.Required,
			Default:     field.Default,
			Description: field.Description,
		}
		switch field.Kind {
		case schema.KindEnumerated:
			view.Options = append([]string(nil), field.Options...)
		case schema.KindNested:
			view.NestedSchema = &SchemaView{
				ModelName: field.Name,
				Fields:    fieldViews(field.Children),
			}
		}
		views = append(views, view)
	}
	return views
}

// Descriptor rebuilds a schema descriptor from the wire view. Unknown type
// strings degrade to text so a hand-written schema still yields a usable
// form.
func (v *SchemaView) Descriptor() schema.SchemaDescriptor {
	if v == nil {
		return schema.SchemaDescriptor{}
	}
	return schema.SchemaDescriptor{
		Name:        v.ModelName,
		Title:       v.Title,
		Description: v.Description,
		Fields:      viewFields(v.Fields),
	}
}

func viewFields(views []FieldView) []schema.FieldDescriptor {
	if len(views) == 0 {
		return nil
	}
	fields := make([]schema.FieldDescriptor, 0, len(views))
	for _, view := range views {
		kind := schema.FieldKind(view.Type)
		if !kind.Valid() {
			kind = schema.KindText
		}
		field := schema.FieldDescriptor{
			Name:        view.Name,
			Kind:        kind,
			Required:    view.Required,
			Description: view.Description,
			Default:     view.Default,
		}
		switch kind {
		case schema.KindEnumerated:
			field.Options = append([]string(nil), view.Options...)
		case schema.KindNested:
			if view.NestedSchema != nil {
				field.Children = viewFields(view.NestedSchema.Fields)
			}
		}
		fields = append(fields, field)
	}
	return fields
}

// ConversationMessage is one wire-level turn of the conversation history.
type ConversationMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// ChatRequest carries one conversational turn. The full history and current
// data travel with the request as in the original protocol; when the
// conversation store already holds the conversation, the stored record wins.
type ChatRequest struct {
	Message             string                `json:"message"`
	ConversationID      string                `json:"conversation_id,omitempty"`
	TargetModel         string                `json:"target_model"`
	TargetSchema        *SchemaView           `json:"target_schema"`
	ConversationHistory []ConversationMessage `json:"conversation_history,omitempty"`
	CurrentData         map[string]any        `json:"current_data,omitempty"`
}

// ChatResponse reports the assistant reply and the reconciled form state.
// IsComplete is the validated truth, not the model's claim: it holds only
// when the model signaled completion and no required field is missing.
type ChatResponse struct {
	Message           string         `json:"message"`
	StructuredData    map[string]any `json:"structured_data,omitempty"`
	IsComplete        bool           `json:"is_complete"`
	MissingFields     []string       `json:"missing_fields,omitempty"`
	FollowUpQuestions []string       `json:"follow_up_questions"`
	ConversationID    string         `json:"conversation_id"`
}

// ForwardRequest asks the gateway to deliver a finalized value map.
type ForwardRequest struct {
	APIURL  string            `json:"api_url"`
	Method  string            `json:"method,omitempty"`
	Data    map[string]any    `json:"data"`
	Headers map[string]string `json:"headers,omitempty"`
	Timeout int               `json:"timeout,omitempty"`
}

// TranscribeRequest carries one recorded clip as base64 audio.
type TranscribeRequest struct {
	Audio    string  `json:"audio"`
	Format   string  `json:"format,omitempty"`
	Duration float64 `json:"duration_seconds,omitempty"`
}

// TranscribeResponse is the recognized text.
type TranscribeResponse struct {
	Text string `json:"text"`
}

func historyTurns(messages []ConversationMessage) []session.ConversationTurn {
	if len(messages) == 0 {
		return nil
	}
	turns := make([]session.ConversationTurn, 0, len(messages))
	for _, msg := range messages {
		role := session.RoleUser
		if msg.Role == string(session.RoleAssistant) {
			role = session.RoleAssistant
		}
		turns = append(turns, session.ConversationTurn{
			Role:      role,
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		})
	}
	return turns
}
