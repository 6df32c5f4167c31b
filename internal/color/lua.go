package color

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"zigbee-rgb-light/internal/light"
)

// Lua runs a user-supplied conversion script. The script must define a global
// function
//
//	function convert(state) return r, g, b end
//
// where state has the fields on, brightness, x, y (raw) and fx, fy (0..1).
// Results are clamped to 0..255 and NaN becomes 0. A script error, timeout or
// non-numeric result falls back to the Midpoint policy.
//
// The output is deterministic only for scripts that finish well within the
// per-call timeout: a script near the limit may return its own result on one
// call and the Midpoint fallback on the next for the same state.
type Lua struct {
	mu       sync.Mutex
	state    *lua.LState
	fn       *lua.LFunction
	timeout  time.Duration
	fallback Converter
	logger   *slog.Logger
}

// LoadLua reads a conversion script from path.
func LoadLua(path string, timeout time.Duration, logger *slog.Logger) (*Lua, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read color script: %w", err)
	}
	return NewLua(string(code), timeout, logger)
}

// NewLua compiles a conversion script.
func NewLua(code string, timeout time.Duration, logger *slog.Logger) (*Lua, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: false})

	// Sandbox
	L.SetGlobal("os", lua.LNil)
	L.SetGlobal("io", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("require", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("debug", lua.LNil)
	L.SetGlobal("package", lua.LNil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	L.SetContext(ctx)
	if err := L.DoString(code); err != nil {
		L.Close()
		return nil, fmt.Errorf("load color script: %w", err)
	}
	L.RemoveContext()

	fn, ok := L.GetGlobal("convert").(*lua.LFunction)
	if !ok {
		L.Close()
		return nil, fmt.Errorf("color script does not define function convert(state)")
	}

	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	return &Lua{
		state:    L,
		fn:       fn,
		timeout:  timeout,
		fallback: Midpoint{},
		logger:   logger.With("component", "color_lua"),
	}, nil
}

// Convert implements Converter.
func (c *Lua) Convert(s light.State) light.Intensity {
	if !s.On {
		return light.Off
	}
	out, err := c.call(s)
	if err != nil {
		c.logger.Warn("color script failed, using midpoint", "err", err)
		return c.fallback.Convert(s)
	}
	return out
}

func (c *Lua) call(s light.State) (light.Intensity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	L := c.state
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	L.SetContext(ctx)
	defer L.RemoveContext()

	fx, fy := s.XYFloat()
	tbl := L.NewTable()
	tbl.RawSetString("on", lua.LBool(s.On))
	tbl.RawSetString("brightness", lua.LNumber(s.Brightness))
	tbl.RawSetString("x", lua.LNumber(s.X))
	tbl.RawSetString("y", lua.LNumber(s.Y))
	tbl.RawSetString("fx", lua.LNumber(fx))
	tbl.RawSetString("fy", lua.LNumber(fy))

	top := L.GetTop()
	if err := L.CallByParam(lua.P{
		Fn:      c.fn,
		NRet:    3,
		Protect: true,
	}, tbl); err != nil {
		L.SetTop(top)
		return light.Intensity{}, err
	}
	defer L.SetTop(top)

	var rgb [3]uint8
	for i := range rgb {
		n, ok := L.Get(top + 1 + i).(lua.LNumber)
		if !ok {
			return light.Intensity{}, fmt.Errorf("convert returned %s for channel %d, want number",
				L.Get(top+1+i).Type(), i)
		}
		rgb[i] = clamp8(float64(n))
	}
	return light.Intensity{Red: rgb[0], Green: rgb[1], Blue: rgb[2]}, nil
}

// Close releases the Lua VM.
func (c *Lua) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Close()
}
