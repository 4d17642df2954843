package gridsnake

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/youssefsiam38/arenawatch/render"
	"github.com/youssefsiam38/arenawatch/types"
)

// mutableIdentities lets a test resolve an agent mid-match.
type mutableIdentities map[types.AgentID]types.Identity

func (m mutableIdentities) ColourOf(id types.AgentID) string {
	if ident, ok := m[id]; ok {
		return ident.Colour
	}
	return render.FallbackColour
}

func (m mutableIdentities) NameOf(id types.AgentID) (string, bool) {
	ident, ok := m[id]
	return ident.Name, ok
}

func delta(t *testing.T, kind string, data any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(map[string]any{"kind": kind, "data": data})
	if err != nil {
		t.Fatalf("marshal delta: %v", err)
	}
	return b
}

func setup(t *testing.T, ids mutableIdentities, players ...types.AgentID) (*Renderer, *render.Container) {
	t.Helper()
	r := newRenderer(render.Deps{Identities: ids})
	c := render.NewContainer()
	if err := r.StartGame(c, players); err != nil {
		t.Fatalf("StartGame() error = %v", err)
	}
	return r, c
}

func apply(t *testing.T, r *Renderer, c *render.Container, d json.RawMessage) {
	t.Helper()
	if err := r.UpdateGame(c, d); err != nil {
		t.Fatalf("UpdateGame(%s) error = %v", d, err)
	}
}

func TestRenderer_UpdPointWrites(t *testing.T) {
	ids := mutableIdentities{
		10: {Name: "red", Colour: "#AA0000"},
		20: {Name: "blue", Colour: "#0000AA"},
	}
	r, c := setup(t, ids, 10, 20)

	apply(t, r, c, delta(t, "dimensions", []int{3, 4}))
	apply(t, r, c, delta(t, "upd", [][]int{{2, 0, 0, 1, 1}}))

	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			cell := c.ByID(CellID(row, col))
			if cell == nil {
				t.Fatalf("cell %d,%d missing", row, col)
			}
			want := DefaultEmptyColour
			if (row == 0 && col == 0) || (row == 1 && col == 1) {
				want = "#0000AA"
			}
			if cell.Colour != want {
				t.Errorf("cell %d,%d colour = %q, want %q", row, col, cell.Colour, want)
			}
		}
	}
}

func TestRenderer_ScoreDeltasAccumulate(t *testing.T) {
	r, c := setup(t, nil, 1, 2)

	apply(t, r, c, delta(t, "scr", []float64{3, 0}))
	apply(t, r, c, delta(t, "scr", []float64{3, 0}))

	got := r.Scores()
	if len(got) != 2 || got[0] != 6 || got[1] != 0 {
		t.Errorf("Scores() = %v, want [6 0]", got)
	}
	if el := c.ByID(ScoreID(0)); el.Text != "6" {
		t.Errorf("score text = %q, want 6", el.Text)
	}

	apply(t, r, c, delta(t, "scores", []float64{1.5, 2}))
	if got := r.Scores(); got[0] != 1.5 || got[1] != 2 {
		t.Errorf("Scores() after absolute = %v", got)
	}

	// Absolute totals replace every running total, listed or not.
	apply(t, r, c, delta(t, "scores", []float64{4}))
	if got := r.Scores(); len(got) != 2 || got[0] != 4 || got[1] != 0 {
		t.Errorf("Scores() after short absolute = %v, want [4 0]", got)
	}
	if el := c.ByID(ScoreID(1)); el.Text != "0" {
		t.Errorf("second score text = %q, want 0", el.Text)
	}
}

func TestRenderer_DimensionsBounded(t *testing.T) {
	r, c := setup(t, nil, 1)
	apply(t, r, c, delta(t, "dimensions", []int{MaxDimension, 1}))

	tests := []struct {
		name string
		dims []int
	}{
		{"too many rows", []int{MaxDimension + 1, 4}},
		{"too many cols", []int{4, MaxDimension + 1}},
		{"huge", []int{100000, 100000}},
		{"zero", []int{0, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.UpdateGame(c, delta(t, "dimensions", tt.dims))
			if !errors.Is(err, render.ErrBadDelta) {
				t.Fatalf("UpdateGame() error = %v, want ErrBadDelta", err)
			}
			if rows, cols := r.Dimensions(); rows != MaxDimension || cols != 1 {
				t.Errorf("Dimensions() = %d, %d after rejected delta", rows, cols)
			}
		})
	}
}

func TestRenderer_DimensionsSizeCells(t *testing.T) {
	r, c := setup(t, nil, 1)
	apply(t, r, c, delta(t, "dimensions", []int{10, 20}))

	cell := c.ByID(CellID(9, 19))
	if cell == nil {
		t.Fatal("last cell missing")
	}
	if got := cell.Style["width"]; got != "30px" {
		t.Errorf("cell width = %q, want 30px", got)
	}

	// Shrinking drops the old cells from the index.
	apply(t, r, c, delta(t, "dimensions", []int{2, 2}))
	if c.ByID(CellID(9, 19)) != nil {
		t.Error("stale cell still reachable after re-dimensioning")
	}
}

func TestRenderer_GridRepaint(t *testing.T) {
	ids := mutableIdentities{1: {Colour: "#111111"}}
	r, c := setup(t, ids, 1, 2)

	// A grid before dimensions sizes the board itself.
	apply(t, r, c, delta(t, "grid", [][]int{{-1, 0}, {1, 2}}))

	tests := []struct {
		row, col int
		want     string
	}{
		{0, 0, DefaultFoodColour},
		{0, 1, DefaultEmptyColour},
		{1, 0, "#111111"},
		{1, 1, render.FallbackColour},
	}
	for _, tt := range tests {
		if got := c.ByID(CellID(tt.row, tt.col)).Colour; got != tt.want {
			t.Errorf("cell %d,%d = %q, want %q", tt.row, tt.col, got, tt.want)
		}
	}

	err := r.UpdateGame(c, delta(t, "grid", [][]int{{0, 0, 0}}))
	if !errors.Is(err, render.ErrBadDelta) {
		t.Errorf("mismatched grid error = %v, want ErrBadDelta", err)
	}
}

func TestRenderer_BadUpdLeavesBoardUntouched(t *testing.T) {
	r, c := setup(t, nil, 1)
	apply(t, r, c, delta(t, "dimensions", []int{2, 2}))

	tests := []struct {
		name   string
		groups [][]int
	}{
		{"even group", [][]int{{1, 0, 0}, {1, 0}}},
		{"out of bounds", [][]int{{1, 0, 0, 5, 5}}},
		{"negative", [][]int{{1, -1, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.UpdateGame(c, delta(t, "upd", tt.groups))
			if !errors.Is(err, render.ErrBadDelta) {
				t.Fatalf("UpdateGame() error = %v, want ErrBadDelta", err)
			}
			if v, _ := r.Value(0, 0); v != 0 {
				t.Errorf("cell 0,0 = %d after rejected upd", v)
			}
		})
	}
}

func TestRenderer_UpdBeforeDimensions(t *testing.T) {
	r, c := setup(t, nil, 1)
	err := r.UpdateGame(c, delta(t, "upd", [][]int{{1, 0, 0}}))
	if !errors.Is(err, render.ErrBadDelta) {
		t.Errorf("UpdateGame() error = %v, want ErrBadDelta", err)
	}
}

func TestRenderer_RepaintsWhenColourResolves(t *testing.T) {
	ids := mutableIdentities{}
	r, c := setup(t, ids, 7)

	apply(t, r, c, delta(t, "dimensions", []int{1, 2}))
	apply(t, r, c, delta(t, "upd", [][]int{{1, 0, 1}}))
	if got := c.ByID(CellID(0, 1)).Colour; got != render.FallbackColour {
		t.Fatalf("unresolved colour = %q", got)
	}

	ids[7] = types.Identity{Name: "late", Colour: "#00CC00"}
	apply(t, r, c, delta(t, "scr", []float64{0}))

	if got := c.ByID(CellID(0, 1)).Colour; got != "#00CC00" {
		t.Errorf("colour after resolve = %q, want #00CC00", got)
	}
}

func TestRenderer_Notices(t *testing.T) {
	ids := mutableIdentities{1: {Name: "alpha"}}
	r, c := setup(t, ids, 1, 2)

	apply(t, r, c, delta(t, "wall_crash", 1))
	apply(t, r, c, delta(t, "snake_crash", 2))
	apply(t, r, c, delta(t, "head_butt", 9))

	log := c.ByID(logID)
	want := []string{
		"alpha crashed into a wall",
		"#2 crashed into a snake",
		"player 9 hit another snake head on",
	}
	if len(log.Children) != len(want) {
		t.Fatalf("log has %d lines, want %d", len(log.Children), len(want))
	}
	for i, line := range log.Children {
		if line.Text != want[i] {
			t.Errorf("line %d = %q, want %q", i, line.Text, want[i])
		}
	}
}

func TestRenderer_ShouldWaitForUpdate(t *testing.T) {
	r := newRenderer(render.Deps{})
	tests := []struct {
		delta json.RawMessage
		want  bool
	}{
		{json.RawMessage(`{"kind":"upd","data":[]}`), true},
		{json.RawMessage(`{"kind":"scr","data":[1]}`), false},
		{json.RawMessage(`{"kind":"dimensions","data":[1,1]}`), false},
		{json.RawMessage(`{"kind":"wall_crash","data":1}`), false},
		{json.RawMessage(`not json`), true},
	}
	for _, tt := range tests {
		if got := r.ShouldWaitForUpdate(tt.delta); got != tt.want {
			t.Errorf("ShouldWaitForUpdate(%s) = %v, want %v", tt.delta, got, tt.want)
		}
	}
}

func TestRenderer_UnknownKindIgnored(t *testing.T) {
	r, c := setup(t, nil, 1)
	if err := r.UpdateGame(c, json.RawMessage(`{"kind":"teleport","data":{}}`)); err != nil {
		t.Errorf("UpdateGame() error = %v, want nil", err)
	}
}

func TestFactory_Options(t *testing.T) {
	r := Factory(WithPixelBudget(100), WithColours("#000000", ""))(render.Deps{}).(*Renderer)
	if r.pixelBudget != 100 || r.emptyColour != "#000000" || r.foodColour != DefaultFoodColour {
		t.Errorf("options not applied: %+v", r)
	}
}
