// Package scripting runs Lua-defined policies.
//
// A script defines a global function choose(state) that returns an action,
// either as its index (0-3) or its name ("noop", "fire", "leftfire",
// "rightfire"). Returning nil means noop.
package scripting

import (
	"fmt"

	"github.com/brensch/atlantis/game"
	"github.com/brensch/atlantis/rules"
	lua "github.com/yuin/gopher-lua"
)

const chooseFn = "choose"

// Engine wraps a single gopher-lua VM. Not safe for concurrent use: give each
// worker its own Engine.
type Engine struct {
	vm  *lua.LState
	cfg *game.Config
}

// NewEngine loads the script at path.
func NewEngine(cfg *game.Config, path string) (*Engine, error) {
	return newEngine(cfg, func(vm *lua.LState) error { return vm.DoFile(path) })
}

// NewEngineFromString loads script source directly.
func NewEngineFromString(cfg *game.Config, src string) (*Engine, error) {
	return newEngine(cfg, func(vm *lua.LState) error { return vm.DoString(src) })
}

func newEngine(cfg *game.Config, load func(*lua.LState) error) (*Engine, error) {
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	vm.SetGlobal("SCREEN_WIDTH", lua.LNumber(cfg.ScreenWidth))
	vm.SetGlobal("SCREEN_HEIGHT", lua.LNumber(cfg.ScreenHeight))
	vm.SetGlobal("TERMINAL_LANE", lua.LNumber(rules.TerminalLane))

	cannons := vm.NewTable()
	for c := 0; c < game.NumCannons; c++ {
		cannons.Append(lua.LNumber(cfg.CannonX[c]))
	}
	vm.SetGlobal("CANNON_X", cannons)

	if err := load(vm); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load script: %w", err)
	}
	if vm.GetGlobal(chooseFn).Type() != lua.LTFunction {
		vm.Close()
		return nil, fmt.Errorf("script does not define %s(state)", chooseFn)
	}
	return &Engine{vm: vm, cfg: cfg}, nil
}

func (e *Engine) Close() {
	e.vm.Close()
}

// Choose calls choose(state) and converts its result to an action.
func (e *Engine) Choose(s *game.State) (game.Action, error) {
	if err := e.vm.CallByParam(lua.P{
		Fn:      e.vm.GetGlobal(chooseFn),
		NRet:    1,
		Protect: true,
	}, e.stateTable(s)); err != nil {
		return game.ActionNoop, fmt.Errorf("lua %s: %w", chooseFn, err)
	}
	ret := e.vm.Get(-1)
	e.vm.Pop(1)

	switch v := ret.(type) {
	case lua.LNumber:
		a := int(v)
		if a < 0 || a >= game.NumActions {
			return game.ActionNoop, fmt.Errorf("lua %s returned action %d", chooseFn, a)
		}
		return game.Action(a), nil
	case lua.LString:
		return game.ParseAction(string(v))
	case *lua.LNilType:
		return game.ActionNoop, nil
	default:
		return game.ActionNoop, fmt.Errorf("lua %s returned %s", chooseFn, ret.Type())
	}
}

// stateTable packs the parts of the state a policy can observe. Only live
// slots are included.
func (e *Engine) stateTable(s *game.State) *lua.LTable {
	t := e.vm.NewTable()
	t.RawSetString("frame", lua.LNumber(s.Frame))
	t.RawSetString("score", lua.LNumber(s.Score))
	t.RawSetString("wave", lua.LNumber(s.Wave))
	t.RawSetString("wave_remaining", lua.LNumber(s.WaveRemaining))
	t.RawSetString("paused", lua.LBool(s.Paused()))
	t.RawSetString("fire_cooldown", lua.LNumber(s.FireCooldown))
	t.RawSetString("fire_held", lua.LBool(s.FireButtonPrev))
	t.RawSetString("plasma_x", lua.LNumber(s.PlasmaX))

	cannons := e.vm.NewTable()
	for _, alive := range s.CannonsAlive {
		cannons.Append(lua.LBool(alive))
	}
	t.RawSetString("cannons", cannons)

	enemies := e.vm.NewTable()
	for i := range s.Enemies {
		en := &s.Enemies[i]
		if !en.Active {
			continue
		}
		w, h := e.cfg.EnemySize(en.Type)
		et := e.vm.NewTable()
		et.RawSetString("x", lua.LNumber(en.X))
		et.RawSetString("y", lua.LNumber(en.Y))
		et.RawSetString("dx", lua.LNumber(en.DX))
		et.RawSetString("w", lua.LNumber(w))
		et.RawSetString("h", lua.LNumber(h))
		et.RawSetString("lane", lua.LNumber(en.Lane))
		et.RawSetString("armed", lua.LBool(rules.CanFire(s, i)))
		enemies.Append(et)
	}
	t.RawSetString("enemies", enemies)

	bullets := e.vm.NewTable()
	for i, alive := range s.BulletsAlive {
		if !alive {
			continue
		}
		b := s.Bullets[i]
		bt := e.vm.NewTable()
		bt.RawSetString("x", lua.LNumber(b.X))
		bt.RawSetString("y", lua.LNumber(b.Y))
		bt.RawSetString("dx", lua.LNumber(b.DX))
		bt.RawSetString("dy", lua.LNumber(b.DY))
		bullets.Append(bt)
	}
	t.RawSetString("bullets", bullets)
	return t
}
