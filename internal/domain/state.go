package domain

// State is the per-thread conversation state carried between graph nodes.
// It is a value: nodes read it and describe changes through an Update.
type State struct {
	Messages    []Message     `json:"messages"`
	UserInfo    string        `json:"user_info,omitempty"`
	DialogStack []DialogState `json:"dialog_stack,omitempty"`
}

// Update is the change a node asks the scheduler to apply to State.
type Update struct {
	// Messages are appended in order.
	Messages []Message
	// UserInfo replaces the stored user info when non-nil.
	UserInfo *string
	// Push adds a dialog frame.
	Push DialogState
	// Pop removes the top dialog frame. Applied before Push.
	Pop bool
}

// LastMessage returns the most recent message.
func (s State) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// CurrentDialog returns the active frame, or DialogPrimary for an empty stack.
func (s State) CurrentDialog() DialogState {
	if len(s.DialogStack) == 0 {
		return DialogPrimary
	}
	return s.DialogStack[len(s.DialogStack)-1]
}

// Clone returns a copy that shares no slices with s.
func (s State) Clone() State {
	out := State{UserInfo: s.UserInfo}
	if s.Messages != nil {
		out.Messages = make([]Message, len(s.Messages))
		for i, m := range s.Messages {
			if m.ToolCalls != nil {
				m.ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
			}
			out.Messages[i] = m
		}
	}
	if s.DialogStack != nil {
		out.DialogStack = append([]DialogState(nil), s.DialogStack...)
	}
	return out
}

// Apply returns a new State with u applied. s is left untouched.
func (s State) Apply(u Update) State {
	out := s.Clone()
	out.Messages = append(out.Messages, u.Messages...)
	if u.UserInfo != nil {
		out.UserInfo = *u.UserInfo
	}
	if u.Pop && len(out.DialogStack) > 0 {
		out.DialogStack = out.DialogStack[:len(out.DialogStack)-1]
	}
	if u.Push != "" {
		out.DialogStack = append(out.DialogStack, u.Push)
	}
	return out
}

// PendingToolCalls returns the tool calls of the last message when it is an
// assistant message, which is what a paused sensitive node would execute.
func (s State) PendingToolCalls() []ToolCall {
	last, ok := s.LastMessage()
	if !ok || last.Role != RoleAssistant {
		return nil
	}
	return last.ToolCalls
}
