package color

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"zigbee-rgb-light/internal/light"
)

func TestLuaConvert(t *testing.T) {
	c := newTestLua(t, `
function convert(s)
  local r = math.floor(s.x / 256)
  local g = math.floor(s.y / 256)
  return r * s.brightness / 255, g * s.brightness / 255, 0
end`)

	got := c.Convert(light.State{On: true, Brightness: 255, X: 0xFF00, Y: 0x8000})
	want := light.Intensity{Red: 255, Green: 128, Blue: 0}
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestLuaConvertClamps(t *testing.T) {
	c := newTestLua(t, `function convert(s) return 300, -20, 127.6 end`)
	got := c.Convert(light.State{On: true})
	want := light.Intensity{Red: 255, Green: 0, Blue: 128}
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestLuaConvertNaNIsZero(t *testing.T) {
	c := newTestLua(t, `function convert(s) return 0/0, 10, -(0/0) end`)
	got := c.Convert(light.State{On: true})
	want := light.Intensity{Red: 0, Green: 10, Blue: 0}
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestLuaFallsBackToMidpoint(t *testing.T) {
	s := light.State{On: true, X: 0xFF00}
	want := Midpoint{}.Convert(s)

	tests := []struct {
		name string
		code string
	}{
		{"runtime error", `function convert(s) error("boom") end`},
		{"non-numeric", `function convert(s) return "red", 0, 0 end`},
		{"too few results", `function convert(s) return 1 end`},
		{"infinite loop", `function convert(s) while true do end end`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestLua(t, tt.code)
			if got := c.Convert(s); got != want {
				t.Errorf("got %v, want fallback %v", got, want)
			}
			// The VM stays usable after a failure.
			if got := c.Convert(s); got != want {
				t.Errorf("second call: got %v, want %v", got, want)
			}
		})
	}
}

func TestLuaSandbox(t *testing.T) {
	c := newTestLua(t, `function convert(s) if os == nil and io == nil then return 1, 1, 1 end return 0, 0, 0 end`)
	if got := c.Convert(light.State{On: true}); got != (light.Intensity{Red: 1, Green: 1, Blue: 1}) {
		t.Errorf("sandbox globals present: got %v", got)
	}
}

func TestNewLuaErrors(t *testing.T) {
	if _, err := NewLua(`this is not lua`, time.Second, newTestLogger()); err == nil {
		t.Error("expected syntax error")
	}
	if _, err := NewLua(`x = 1`, time.Second, newTestLogger()); err == nil {
		t.Error("expected error for missing convert")
	}
}

func TestLoadLua(t *testing.T) {
	path := filepath.Join(t.TempDir(), "color.lua")
	if err := os.WriteFile(path, []byte(`function convert(s) return 9, 8, 7 end`), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadLua(path, 0, newTestLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if got := c.Convert(light.State{On: true}); got != (light.Intensity{Red: 9, Green: 8, Blue: 7}) {
		t.Errorf("got %v", got)
	}

	if _, err := LoadLua(filepath.Join(t.TempDir(), "missing.lua"), 0, newTestLogger()); err == nil {
		t.Error("expected error for missing file")
	}
}
