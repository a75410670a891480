package domain

import (
	"maps"
	"slices"
	"strconv"
)

// Message roles used by the assistants.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single entry of the conversation log carried by a State.
type Message struct {
	Role    string         `json:"role"`
	Content string         `json:"content"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// Update is the partial state returned by a node.
// Fields and Signals overwrite, Messages append.
type Update struct {
	Fields   map[string]any `json:"fields,omitempty"`
	Messages []Message      `json:"messages,omitempty"`
	Signals  map[string]any `json:"signals,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u Update) IsEmpty() bool {
	return len(u.Fields) == 0 && len(u.Messages) == 0 && len(u.Signals) == 0
}

// State is the record flowing through a workflow.
//
// Fields holds the named data of the workflow. Messages is the append-only
// conversation log. Signals is a side channel read by branch selectors and
// never rendered to end users.
//
// A State is treated as a value: Merge returns a new State and leaves the
// receiver untouched.
type State struct {
	Fields   map[string]any `json:"fields"`
	Messages []Message      `json:"messages"`
	Signals  map[string]any `json:"signals,omitempty"`
}

// NewState creates a fresh state holding only the given inputs.
func NewState(inputs map[string]any) *State {
	s := &State{
		Fields:  make(map[string]any, len(inputs)),
		Signals: make(map[string]any),
	}
	maps.Copy(s.Fields, inputs)
	return s
}

// Get returns a field value and whether it is set.
func (s *State) Get(field string) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.Fields[field]
	return v, ok
}

// String returns a string field. Unset or non-string fields yield "".
func (s *State) String(field string) string {
	v, _ := s.Get(field)
	str, _ := v.(string)
	return str
}

// Float returns a numeric field as float64. Unset or non-numeric fields yield 0.
func (s *State) Float(field string) float64 {
	v, _ := s.Get(field)
	f, _ := toFloat(v)
	return f
}

// Bool returns a boolean field. Unset fields yield false.
func (s *State) Bool(field string) bool {
	v, _ := s.Get(field)
	b, _ := v.(bool)
	return b
}

// Signal returns a signal value and whether it is set.
func (s *State) Signal(name string) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.Signals[name]
	return v, ok
}

// BoolSignal returns a boolean signal, false when unset.
func (s *State) BoolSignal(name string) bool {
	v, _ := s.Signal(name)
	b, _ := v.(bool)
	return b
}

// Merge combines the receiver with an update and returns the result.
// Every field or signal present in u replaces the previous value.
// Messages of u are appended after the existing ones.
func (s *State) Merge(u Update) *State {
	out := s.Clone()
	maps.Copy(out.Fields, u.Fields)
	maps.Copy(out.Signals, u.Signals)
	if len(u.Messages) > 0 {
		out.Messages = append(out.Messages, cloneMessages(u.Messages)...)
	}
	return out
}

// Clone returns a copy that shares no maps or slices with the receiver.
// Field values themselves are copied shallowly.
func (s *State) Clone() *State {
	if s == nil {
		return NewState(nil)
	}
	out := &State{
		Fields:   make(map[string]any, len(s.Fields)),
		Signals:  make(map[string]any, len(s.Signals)),
		Messages: cloneMessages(s.Messages),
	}
	maps.Copy(out.Fields, s.Fields)
	maps.Copy(out.Signals, s.Signals)
	return out
}

// LastMessage scans the log from the end and returns the first message
// that satisfies pred.
func (s *State) LastMessage(pred func(Message) bool) (Message, bool) {
	if s == nil {
		return Message{}, false
	}
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if pred(s.Messages[i]) {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// LastMessageByRole returns the most recent message from the given role.
func (s *State) LastMessageByRole(role string) (Message, bool) {
	return s.LastMessage(func(m Message) bool { return m.Role == role })
}

// LastMessageWith returns the most recent message carrying the extra key.
func (s *State) LastMessageWith(key string) (Message, bool) {
	return s.LastMessage(func(m Message) bool {
		_, ok := m.Extra[key]
		return ok
	})
}

func cloneMessages(in []Message) []Message {
	if in == nil {
		return nil
	}
	out := slices.Clone(in)
	for i := range out {
		if out[i].Extra != nil {
			out[i].Extra = maps.Clone(out[i].Extra)
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
