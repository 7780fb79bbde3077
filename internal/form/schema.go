// Package form implements the inline-menu form engine: a per-conversation
// session of field values, a pure menu renderer, and an event-driven
// controller that walks each field through a prompt/await/commit
// sub-conversation while keeping the displayed menu in sync with the
// authoritative session state.
package form

// InputKind describes what a prompted field waits for.
type InputKind int

const (
	// InputText accepts the next plain text message verbatim.
	InputText InputKind = iota
	// InputPhoto accepts the next photo message. The highest-resolution
	// variant is selected and downloaded to durable storage.
	InputPhoto
)

// FieldSpec declares a prompted field: the user enters a sub-conversation,
// is shown Prompt, and the next qualifying message becomes the value.
type FieldSpec struct {
	Name   string
	Label  string
	Prompt string
	Kind   InputKind
}

// ToggleSpec declares a boolean control mutated in place by a single
// button press. Toggles always have a defined value.
type ToggleSpec struct {
	Name    string
	Label   string
	Default bool
}

// CounterSpec declares an integer control adjusted in place by -/+ buttons.
// Counters always have a defined value and are unbounded.
type CounterSpec struct {
	Name    string
	Label   string
	Default int
	Step    int
}

// Schema is the static declarative description of a form. It is built
// once at startup and never mutated; sessions hold the per-conversation
// values.
type Schema struct {
	Name     string
	Fields   []FieldSpec
	Toggles  []ToggleSpec
	Counters []CounterSpec
}

// Field looks up a prompted field by name.
func (s *Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Toggle looks up a toggle by name.
func (s *Schema) Toggle(name string) (ToggleSpec, bool) {
	for _, t := range s.Toggles {
		if t.Name == name {
			return t, true
		}
	}
	return ToggleSpec{}, false
}

// Counter looks up a counter by name.
func (s *Schema) Counter(name string) (CounterSpec, bool) {
	for _, c := range s.Counters {
		if c.Name == name {
			return c, true
		}
	}
	return CounterSpec{}, false
}

// Newspaper returns the production schema for the newspaper front-page
// post: one news photo, overline and headline, three event lines, the
// render toggles, and the date/font-size counters.
func Newspaper() *Schema {
	return &Schema{
		Name: "newspaper",
		Fields: []FieldSpec{
			{Name: "image1", Label: "Image1", Prompt: "Please send the news photo", Kind: InputPhoto},
			{Name: "overline", Label: "Overline", Prompt: "Please send the overline text", Kind: InputText},
			{Name: "headline", Label: "Headline", Prompt: "Please send the main headline text", Kind: InputText},
			{Name: "event1", Label: "Event1", Prompt: "Please send the first event text", Kind: InputText},
			{Name: "event2", Label: "Event2", Prompt: "Please send the second event text", Kind: InputText},
			{Name: "event3", Label: "Event3", Prompt: "Please send the third event text", Kind: InputText},
		},
		Toggles: []ToggleSpec{
			{Name: "dynamic_font", Label: "DynFont", Default: false},
			{Name: "watermark", Label: "Watermark", Default: true},
			{Name: "composed", Label: "Composed", Default: false},
		},
		Counters: []CounterSpec{
			{Name: "days", Label: "Day", Default: 0, Step: 1},
			{Name: "overline_font_delta", Label: "Overline", Default: 0, Step: 10},
			{Name: "headline_font_delta", Label: "Headline", Default: 0, Step: 10},
		},
	}
}
