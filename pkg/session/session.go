package session

import (
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-formflow/pkg/schema"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one entry of the append-only conversation history.
// Turns are never edited or removed except by a full Reset.
type ConversationTurn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session owns the shared mutable state of one form-filling run: the loaded
// schema, the single ValueMap both input paths write into, and the
// conversation history. All access goes through its methods so concurrent
// writers stay memory-safe; beyond that, last write wins per field and no
// ordering between the two paths is imposed.
type Session struct {
	mu           sync.Mutex
	descriptor   schema.SchemaDescriptor
	values       ValueMap
	turns        []ConversationTurn
	completeHint bool
}

// Option adjusts session construction.
type Option func(*Session)

// WithValues merges initial values over the seeded defaults.
func WithValues(values map[string]any) Option {
	return func(s *Session) {
		s.values.Merge(values)
	}
}

// WithHistory seeds prior conversation turns, e.g. when resuming a stored
// conversation.
func WithHistory(turns []ConversationTurn) Option {
	return func(s *Session) {
		s.turns = append(s.turns, turns...)
	}
}

// New creates a session for a loaded schema. Field defaults are materialized
// into the ValueMap at every nesting depth before any option runs, so a
// finalized submission carries them even when neither input path touched the
// field.
func New(descriptor schema.SchemaDescriptor, options ...Option) *Session {
	s := &Session{
		descriptor: descriptor.Clone(),
		values:     make(ValueMap),
	}
	seedDefaults(s.values, s.descriptor.Fields, nil)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

func seedDefaults(values ValueMap, fields []schema.FieldDescriptor, prefix []string) {
	for _, field := range fields {
		path := append(append([]string(nil), prefix...), field.Name)
		if field.Default != nil {
			_ = values.Set(path, field.Default)
		}
		if field.Kind == schema.KindNested {
			seedDefaults(values, field.Children, path)
		}
	}
}

// Descriptor returns a copy of the schema this session was built for.
func (s *Session) Descriptor() schema.SchemaDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.descriptor.Clone()
}

// SetField writes a value at the given field path. Intermediate nested maps
// are created as needed and existing values are overwritten unconditionally;
// schema conformance is checked at validation time, not here.
func (s *Session) SetField(path []string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values.Set(path, value)
}

// Field reads the value at a field path.
func (s *Session) Field(path []string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values.Get(path)
}

// Values returns a deep-copied snapshot of the ValueMap. The live instance
// never leaves the session.
func (s *Session) Values() ValueMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values.Clone()
}

// Merge folds a partial update (typically extracted by the conversational
// collaborator) into the ValueMap non-destructively: sibling keys survive,
// map-valued keys merge recursively.
func (s *Session) Merge(patch map[string]any) {
	if len(patch) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values.Merge(patch)
}

// Validate returns the dotted paths of required fields that are still
// missing. Nested children are only checked when the nested field is present
// or itself required. An empty result means the ValueMap satisfies the
// schema's required-field rule.
func (s *Session) Validate() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	missing := make([]string, 0)
	collectMissing(s.descriptor.Fields, s.values, "", &missing)
	return missing
}

func collectMissing(fields []schema.FieldDescriptor, values map[string]any, prefix string, acc *[]string) {
	for _, field := range fields {
		path := field.Name
		if prefix != "" {
			path = prefix + "." + field.Name
		}

		var (
			value   any
			present bool
		)
		if values != nil {
			value, present = values[field.Name]
		}

		if field.Kind == schema.KindNested {
			child, isMap := value.(map[string]any)
			if field.Required && (!present || !isMap) {
				*acc = append(*acc, path)
			}
			if present || field.Required {
				if !isMap {
					child = nil
				}
				collectMissing(field.Children, child, path, acc)
			}
			continue
		}

		if field.Required && isMissingScalar(value, present) {
			*acc = append(*acc, path)
		}
	}
}

func isMissingScalar(value any, present bool) bool {
	if !present || value == nil {
		return true
	}
	if text, ok := value.(string); ok {
		return strings.TrimSpace(text) == ""
	}
	return false
}

// SetCompleteHint records the collaborator's completion claim. The claim is a
// hint only; Complete re-checks the required-field rule.
func (s *Session) SetCompleteHint(complete bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completeHint = complete
}

// CompleteHint reports the collaborator's last completion claim as-is.
func (s *Session) CompleteHint() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completeHint
}

// Complete reports whether the session can be considered finished. The
// collaborator claim and the structural validator are independent checks that
// may disagree; the validator wins, so completion requires the hint and an
// empty missing set.
func (s *Session) Complete() bool {
	s.mu.Lock()
	hint := s.completeHint
	s.mu.Unlock()
	return hint && len(s.Validate()) == 0
}

// AppendTurn appends a conversation turn stamped with the current time.
func (s *Session) AppendTurn(role Role, content string) ConversationTurn {
	turn := ConversationTurn{Role: role, Content: content, Timestamp: time.Now().UTC()}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
	return turn
}

// Turns returns a copy of the conversation history in order.
func (s *Session) Turns() []ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ConversationTurn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Reset clears the ValueMap, the conversation history, and any completion
// hint in one critical section. Partially reset states are not observable:
// defaults are not re-seeded, matching a cleared conversation.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(ValueMap)
	s.turns = nil
	s.completeHint = false
}
