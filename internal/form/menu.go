package form

import (
	"fmt"
	"strings"
)

// Menu action verbs carried in button callback data. The bridge passes
// them back verbatim as [EventAction] events; the controller parses
// them with splitAction.
const (
	ActionClear  = "clear"
	ActionFinish = "finish"
	ActionCancel = "cancel"
	ActionNoop   = "noop"

	actionField   = "field"
	actionToggle  = "toggle"
	actionCounter = "counter"
)

// FieldAction returns the action that enters a field sub-conversation.
func FieldAction(name string) string { return actionField + ":" + name }

// ToggleAction returns the action that flips a toggle in place.
func ToggleAction(name string) string { return actionToggle + ":" + name }

// CounterAction returns the action that steps a counter. dir is "inc"
// or "dec".
func CounterAction(name, dir string) string {
	return actionCounter + ":" + name + ":" + dir
}

// splitAction breaks an action string into verb and arguments.
func splitAction(action string) (verb string, args []string) {
	parts := strings.Split(action, ":")
	return parts[0], parts[1:]
}

// Button is one interactive control: a label the user sees and an
// opaque action the controller dispatches on.
type Button struct {
	Label  string
	Action string
}

// Menu is a full descriptor of the form's control set, laid out in
// rows. It is a pure value computed from a snapshot; it never holds
// live session references.
type Menu struct {
	Rows [][]Button
}

// BuildMenu computes the menu descriptor for the current field values.
// Button order follows schema declaration order: prompted fields first
// (one per row), then the toggle row, one row per counter, and the
// Finish/Clear row.
//
// Labels encode presence: a set photo field shows "<Label> ✅", a set
// text field shows "<Label>: <value>", and an unset field of either
// kind shows "<Label> ❌".
func BuildMenu(schema *Schema, snap Snapshot) Menu {
	var m Menu

	for _, f := range schema.Fields {
		m.Rows = append(m.Rows, []Button{{
			Label:  fieldLabel(f, snap),
			Action: FieldAction(f.Name),
		}})
	}

	if len(schema.Toggles) > 0 {
		var row []Button
		for _, t := range schema.Toggles {
			state := "Off"
			if snap.Toggle(t.Name) {
				state = "On"
			}
			row = append(row, Button{
				Label:  t.Label + ": " + state,
				Action: ToggleAction(t.Name),
			})
		}
		m.Rows = append(m.Rows, row)
	}

	for _, c := range schema.Counters {
		m.Rows = append(m.Rows, []Button{
			{Label: "-", Action: CounterAction(c.Name, "dec")},
			{Label: fmt.Sprintf("%s: %d", c.Label, snap.Counter(c.Name)), Action: ActionNoop},
			{Label: "+", Action: CounterAction(c.Name, "inc")},
		})
	}

	m.Rows = append(m.Rows, []Button{
		{Label: "Finish", Action: ActionFinish},
		{Label: "Clear", Action: ActionClear},
	})

	return m
}

func fieldLabel(f FieldSpec, snap Snapshot) string {
	switch f.Kind {
	case InputPhoto:
		if _, ok := snap.Image(f.Name); ok {
			return f.Label + " ✅"
		}
	default:
		if v, ok := snap.Texts[f.Name]; ok {
			return f.Label + ": " + v
		}
	}
	return f.Label + " ❌"
}

// CancelMenu is the control set shown while a field sub-conversation
// owns input focus: the only meaningful action is aborting it.
func CancelMenu() Menu {
	return Menu{Rows: [][]Button{{{Label: "Cancel", Action: ActionCancel}}}}
}
