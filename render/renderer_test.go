package render

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/youssefsiam38/arenawatch/types"
)

type nopRenderer struct{}

func (nopRenderer) StartGame(*Container, []types.AgentID) error { return nil }
func (nopRenderer) UpdateGame(*Container, json.RawMessage) error { return nil }
func (nopRenderer) ShouldWaitForUpdate(json.RawMessage) bool { return true }
func (nopRenderer) EndGame(*Container, json.RawMessage) error { return nil }

type staticIdentities map[types.AgentID]types.Identity

func (s staticIdentities) ColourOf(id types.AgentID) string {
	if ident, ok := s[id]; ok {
		return ident.Colour
	}
	return FallbackColour
}

func (s staticIdentities) NameOf(id types.AgentID) (string, bool) {
	ident, ok := s[id]
	return ident.Name, ok
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	factory := func(Deps) Renderer { return nopRenderer{} }

	if err := r.Register("Tic Tac Toe", factory); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register("Tic Tac Toe", factory); !errors.Is(err, ErrDuplicateGame) {
		t.Errorf("duplicate Register() error = %v, want ErrDuplicateGame", err)
	}

	if _, err := r.New("Tic Tac Toe", Deps{}); err != nil {
		t.Errorf("New() error = %v", err)
	}
	if _, err := r.New("Chess", Deps{}); !errors.Is(err, ErrUnknownGame) {
		t.Errorf("New(Chess) error = %v, want ErrUnknownGame", err)
	}

	if got := r.GameTypes(); len(got) != 1 || got[0] != "Tic Tac Toe" {
		t.Errorf("GameTypes() = %v", got)
	}
}

func TestPlayerLabel(t *testing.T) {
	ids := staticIdentities{1: {Name: "alpha", Colour: "#00FF00"}}

	known := PlayerLabel(ids, 1, " (X)")
	if known.Text != "alpha (X)" || known.Colour != "#00FF00" {
		t.Errorf("known label = %q %q", known.Text, known.Colour)
	}
	if known.Href != "/pages/agent.html?agent=1" {
		t.Errorf("Href = %q", known.Href)
	}

	unknown := PlayerLabel(ids, 2, "")
	if unknown.Colour != FallbackColour || unknown.Text != "#2" {
		t.Errorf("unknown label = %q %q", unknown.Text, unknown.Colour)
	}

	// Later passes pick up resolved identities.
	ids[2] = types.Identity{Name: "beta", Colour: "#0000FF"}
	RefreshPlayerLabel(unknown, ids, 2, "")
	if unknown.Text != "beta" || unknown.Colour != "#0000FF" {
		t.Errorf("refreshed label = %q %q", unknown.Text, unknown.Colour)
	}
}

func TestSummaryText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"null", ""},
		{`"X wins"`, "X wins"},
		{`{"winner":1}`, `{"winner":1}`},
	}
	for _, tt := range tests {
		if got := SummaryText(json.RawMessage(tt.in)); got != tt.want {
			t.Errorf("SummaryText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestContainer_ByIDAndSnapshot(t *testing.T) {
	c := NewContainer()
	board := NewElement("div").WithID("board")
	c.Append(board)

	// Attached after the board joined the container.
	board.Append(NewElement("div").WithID("cell"))

	cell := c.ByID("cell")
	if cell == nil {
		t.Fatal("ByID(cell) = nil")
	}

	snap := c.Snapshot()
	cell.Text = "changed"
	var snapCell *Element
	snap.Walk(func(e *Element) bool {
		if e.ID == "cell" {
			snapCell = e
			return false
		}
		return true
	})
	if snapCell == nil || snapCell.Text != "" {
		t.Error("snapshot shares state with the live tree")
	}

	c.Clear()
	if c.ByID("board") != nil {
		t.Error("ByID after Clear found a stale element")
	}
}
