package arenawatch

import (
	"fmt"

	"github.com/youssefsiam38/arenawatch/render"
	"github.com/youssefsiam38/arenawatch/render/gridsnake"
	"github.com/youssefsiam38/arenawatch/render/tictactoe"
)

// BuiltinGames maps the game types arenawatch renders out of the box to
// their factories.
func BuiltinGames() map[string]render.Factory {
	return map[string]render.Factory{
		tictactoe.GameType: tictactoe.New,
		gridsnake.GameType: gridsnake.Factory(),
	}
}

// RegisterBuiltins adds the built-in renderers to r.
// It fails if r already has a renderer for one of the built-in game types.
func RegisterBuiltins(r *render.Registry) error {
	if r == nil {
		return fmt.Errorf("%w: registry is nil", ErrInvalidConfig)
	}
	for gameType, factory := range BuiltinGames() {
		if err := r.Register(gameType, factory); err != nil {
			return err
		}
	}
	return nil
}

// DefaultRegistry returns a new registry holding the built-in renderers.
//
// Example:
//
//	reg := arenawatch.DefaultRegistry()
//	reg.MustRegister("Connect Four", connectfour.New)
func DefaultRegistry() *render.Registry {
	r := render.NewRegistry()
	if err := RegisterBuiltins(r); err != nil {
		panic(err)
	}
	return r
}
