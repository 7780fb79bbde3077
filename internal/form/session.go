package form

// UserRef identifies the person interacting with a conversation.
// Forwarded to the audit sink on start and publish.
type UserRef struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// ImageValue is a committed photo field: the transport's storage handle
// plus the locally downloaded copy the renderer reads.
type ImageValue struct {
	FileID    string `json:"file_id"`
	LocalPath string `json:"local_path"`
}

// Session is the mutable per-conversation form state. Text and image
// fields are absent until the user supplies them; toggles and counters
// always carry a defined value from creation.
//
// Sessions are owned by the [Store]; handlers receive deep copies and
// apply changes through [Store.Mutate].
type Session struct {
	Conversation string `json:"conversation"`

	Texts    map[string]string     `json:"texts"`
	Images   map[string]ImageValue `json:"images"`
	Toggles  map[string]bool       `json:"toggles"`
	Counters map[string]int        `json:"counters"`

	// ActiveField is the field whose sub-conversation currently owns
	// input focus. Empty while idle on the menu.
	ActiveField string `json:"active_field,omitempty"`
	// PromptMessage references the transport message asking for input.
	// Non-zero iff ActiveField is set.
	PromptMessage int `json:"prompt_message,omitempty"`
	// MainMessage references the single displayed preview/menu message,
	// edited in place rather than re-sent. Zero before /create_post.
	MainMessage int `json:"main_message,omitempty"`

	User UserRef `json:"user"`
}

// newSession creates a session with schema defaults applied.
func newSession(schema *Schema, conversation string) *Session {
	s := &Session{
		Conversation: conversation,
		Texts:        make(map[string]string),
		Images:       make(map[string]ImageValue),
		Toggles:      make(map[string]bool, len(schema.Toggles)),
		Counters:     make(map[string]int, len(schema.Counters)),
	}
	s.resetValues(schema)
	return s
}

// resetValues restores all field values to schema defaults. Display and
// identity state (MainMessage, User) are left alone; the caller decides
// what happens to the displayed message.
func (s *Session) resetValues(schema *Schema) {
	clear(s.Texts)
	clear(s.Images)
	for _, t := range schema.Toggles {
		s.Toggles[t.Name] = t.Default
	}
	for _, c := range schema.Counters {
		s.Counters[c.Name] = c.Default
	}
	s.ActiveField = ""
	s.PromptMessage = 0
}

// clone returns a deep copy safe to hand outside the store's lock.
func (s *Session) clone() *Session {
	c := *s
	c.Texts = make(map[string]string, len(s.Texts))
	for k, v := range s.Texts {
		c.Texts[k] = v
	}
	c.Images = make(map[string]ImageValue, len(s.Images))
	for k, v := range s.Images {
		c.Images[k] = v
	}
	c.Toggles = make(map[string]bool, len(s.Toggles))
	for k, v := range s.Toggles {
		c.Toggles[k] = v
	}
	c.Counters = make(map[string]int, len(s.Counters))
	for k, v := range s.Counters {
		c.Counters[k] = v
	}
	return &c
}

// Snapshot is the immutable view of a session's field values handed to
// the menu renderer and the external render invocation.
type Snapshot struct {
	Conversation string
	Texts        map[string]string
	Images       map[string]ImageValue
	Toggles      map[string]bool
	Counters     map[string]int
}

// Snapshot extracts the field values from a session copy.
func (s *Session) Snapshot() Snapshot {
	c := s.clone()
	return Snapshot{
		Conversation: c.Conversation,
		Texts:        c.Texts,
		Images:       c.Images,
		Toggles:      c.Toggles,
		Counters:     c.Counters,
	}
}

// Text returns a text field's value, or the empty string when unset.
func (s Snapshot) Text(name string) string {
	return s.Texts[name]
}

// Image returns a photo field's value and whether it is set.
func (s Snapshot) Image(name string) (ImageValue, bool) {
	v, ok := s.Images[name]
	return v, ok
}

// Toggle returns a toggle's value. Unknown names read as false.
func (s Snapshot) Toggle(name string) bool {
	return s.Toggles[name]
}

// Counter returns a counter's value. Unknown names read as zero.
func (s Snapshot) Counter(name string) int {
	return s.Counters[name]
}
