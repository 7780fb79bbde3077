package form

import (
	"strings"
	"testing"
)

func snapshotFor(t *testing.T, mutate func(*Session)) Snapshot {
	t.Helper()
	sess := newSession(Newspaper(), "123")
	if mutate != nil {
		mutate(sess)
	}
	return sess.Snapshot()
}

func findButton(m Menu, action string) (Button, bool) {
	for _, row := range m.Rows {
		for _, b := range row {
			if b.Action == action {
				return b, true
			}
		}
	}
	return Button{}, false
}

func TestBuildMenuLayout(t *testing.T) {
	schema := Newspaper()
	m := BuildMenu(schema, snapshotFor(t, nil))

	// Fields one per row, then the toggle row, one row per counter, then
	// the Finish/Clear row.
	wantRows := len(schema.Fields) + 1 + len(schema.Counters) + 1
	if len(m.Rows) != wantRows {
		t.Fatalf("rows = %d, want %d", len(m.Rows), wantRows)
	}
	for i, f := range schema.Fields {
		if len(m.Rows[i]) != 1 || m.Rows[i][0].Action != FieldAction(f.Name) {
			t.Errorf("row %d = %v, want single %s button", i, m.Rows[i], f.Name)
		}
	}
	toggleRow := m.Rows[len(schema.Fields)]
	if len(toggleRow) != len(schema.Toggles) {
		t.Errorf("toggle row has %d buttons, want %d", len(toggleRow), len(schema.Toggles))
	}
	last := m.Rows[len(m.Rows)-1]
	if len(last) != 2 || last[0].Action != ActionFinish || last[1].Action != ActionClear {
		t.Errorf("last row = %v, want Finish/Clear", last)
	}
}

func TestBuildMenuFieldLabels(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Session)
		action string
		want   string
	}{
		{
			name:   "unset text field",
			action: FieldAction("headline"),
			want:   "Headline ❌",
		},
		{
			name: "set text field shows value verbatim",
			mutate: func(s *Session) {
				s.Texts["headline"] = "Stocks Dive: 12% \"loss\""
			},
			action: FieldAction("headline"),
			want:   "Headline: Stocks Dive: 12% \"loss\"",
		},
		{
			name:   "unset photo field",
			action: FieldAction("image1"),
			want:   "Image1 ❌",
		},
		{
			name: "set photo field shows checkmark not value",
			mutate: func(s *Session) {
				s.Images["image1"] = ImageValue{FileID: "f1", LocalPath: "/tmp/p.jpg"}
			},
			action: FieldAction("image1"),
			want:   "Image1 ✅",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := BuildMenu(Newspaper(), snapshotFor(t, tt.mutate))
			b, ok := findButton(m, tt.action)
			if !ok {
				t.Fatalf("no button with action %q", tt.action)
			}
			if b.Label != tt.want {
				t.Errorf("label = %q, want %q", b.Label, tt.want)
			}
		})
	}
}

func TestBuildMenuToggleAndCounterLabels(t *testing.T) {
	m := BuildMenu(Newspaper(), snapshotFor(t, func(s *Session) {
		s.Toggles["watermark"] = false
		s.Counters["days"] = -2
	}))

	b, ok := findButton(m, ToggleAction("watermark"))
	if !ok {
		t.Fatal("no watermark toggle button")
	}
	if b.Label != "Watermark: Off" {
		t.Errorf("toggle label = %q, want %q", b.Label, "Watermark: Off")
	}

	b, ok = findButton(m, ToggleAction("dynamic_font"))
	if !ok {
		t.Fatal("no dynamic_font toggle button")
	}
	if b.Label != "DynFont: Off" {
		t.Errorf("toggle label = %q, want %q", b.Label, "DynFont: Off")
	}

	// Counter rows read -, label with value, +.
	for _, row := range m.Rows {
		if len(row) == 3 && row[0].Action == CounterAction("days", "dec") {
			if row[0].Label != "-" || row[2].Label != "+" {
				t.Errorf("counter edges = %q/%q, want -/+", row[0].Label, row[2].Label)
			}
			if row[1].Label != "Day: -2" {
				t.Errorf("counter label = %q, want %q", row[1].Label, "Day: -2")
			}
			if row[1].Action != ActionNoop {
				t.Errorf("counter value action = %q, want noop", row[1].Action)
			}
			if row[2].Action != CounterAction("days", "inc") {
				t.Errorf("inc action = %q", row[2].Action)
			}
			return
		}
	}
	t.Fatal("no days counter row")
}

func TestBuildMenuIsPure(t *testing.T) {
	snap := snapshotFor(t, func(s *Session) {
		s.Texts["headline"] = "same"
	})
	a := BuildMenu(Newspaper(), snap)
	b := BuildMenu(Newspaper(), snap)

	if len(a.Rows) != len(b.Rows) {
		t.Fatalf("row counts differ: %d vs %d", len(a.Rows), len(b.Rows))
	}
	for i := range a.Rows {
		for j := range a.Rows[i] {
			if a.Rows[i][j] != b.Rows[i][j] {
				t.Errorf("row %d button %d differs: %v vs %v", i, j, a.Rows[i][j], b.Rows[i][j])
			}
		}
	}
}

func TestCancelMenu(t *testing.T) {
	m := CancelMenu()
	if len(m.Rows) != 1 || len(m.Rows[0]) != 1 {
		t.Fatalf("cancel menu shape = %v", m.Rows)
	}
	if m.Rows[0][0].Action != ActionCancel {
		t.Errorf("action = %q, want cancel", m.Rows[0][0].Action)
	}
}

func TestSplitAction(t *testing.T) {
	tests := []struct {
		action   string
		wantVerb string
		wantArgs []string
	}{
		{"clear", "clear", nil},
		{"field:headline", "field", []string{"headline"}},
		{"counter:days:inc", "counter", []string{"days", "inc"}},
	}
	for _, tt := range tests {
		verb, args := splitAction(tt.action)
		if verb != tt.wantVerb {
			t.Errorf("splitAction(%q) verb = %q, want %q", tt.action, verb, tt.wantVerb)
		}
		if strings.Join(args, ",") != strings.Join(tt.wantArgs, ",") {
			t.Errorf("splitAction(%q) args = %v, want %v", tt.action, args, tt.wantArgs)
		}
	}
}
