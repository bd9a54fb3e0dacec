package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/session"
)

const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 2000

	fallbackMessage = "I'm here to help you fill out the form."
)

// TurnRequest carries everything one conversational turn needs: the user
// message, the target schema, the prior history, and the values collected so
// far.
type TurnRequest struct {
	ConversationID string
	Message        string
	Descriptor     schema.SchemaDescriptor
	History        []session.ConversationTurn
	Values         session.ValueMap
}

// TurnResult is the outcome of one turn. Extracted is a partial field patch
// to merge into the session; IsComplete is the model's claim and is treated
// as a hint only.
type TurnResult struct {
	ConversationID    string
	Message           string
	Extracted         map[string]any
	IsComplete        bool
	FollowUpQuestions []string
}

// Collaborator runs conversational turns against a chat Client. It is
// stateless between turns: history and values travel in the TurnRequest and
// the caller owns merging the result into its session.
type Collaborator struct {
	client      Client
	prompts     *PromptBuilder
	temperature float64
	maxTokens   int
}

// CollaboratorOption configures a Collaborator.
type CollaboratorOption func(*Collaborator)

// WithTemperature overrides the low default used for consistent extraction.
func WithTemperature(t float64) CollaboratorOption {
	return func(c *Collaborator) {
		if t >= 0 {
			c.temperature = t
		}
	}
}

// WithMaxTokens bounds the completion length.
func WithMaxTokens(n int) CollaboratorOption {
	return func(c *Collaborator) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// NewCollaborator wires a chat client and prompt builder into a turn runner.
func NewCollaborator(client Client, prompts *PromptBuilder, opts ...CollaboratorOption) (*Collaborator, error) {
	if client == nil {
		return nil, fmt.Errorf("chat: collaborator requires a client")
	}
	if prompts == nil {
		return nil, fmt.Errorf("chat: collaborator requires a prompt builder")
	}
	c := &Collaborator{
		client:      client,
		prompts:     prompts,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Converse runs one round trip: system prompt from schema and values, the
// prior history, the user message, and a structured-output response decoded
// into a TurnResult. A missing ConversationID is minted here so every result
// carries one.
func (c *Collaborator) Converse(ctx context.Context, req TurnRequest) (TurnResult, error) {
	if err := ctx.Err(); err != nil {
		return TurnResult{}, err
	}

	system, err := c.prompts.System(req.Descriptor, req.Values)
	if err != nil {
		return TurnResult{}, err
	}

	messages := make([]Message, 0, len(req.History)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: system})
	for _, turn := range req.History {
		messages = append(messages, Message{Role: string(turn.Role), Content: turn.Content})
	}
	messages = append(messages, Message{Role: RoleUser, Content: req.Message})

	raw, err := c.client.Complete(ctx, CompletionRequest{
		Messages:    messages,
		Format:      ExtractionFormat(),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return TurnResult{}, err
	}

	extraction, err := decodeExtraction(raw)
	if err != nil {
		return TurnResult{}, err
	}

	result := TurnResult{
		ConversationID:    req.ConversationID,
		Message:           extraction.Message,
		Extracted:         extraction.Fields,
		IsComplete:        extraction.IsComplete,
		FollowUpQuestions: extraction.FollowUpQuestions,
	}
	if result.ConversationID == "" {
		result.ConversationID = uuid.NewString()
	}
	if result.Message == "" {
		result.Message = fallbackMessage
	}
	return result, nil
}
