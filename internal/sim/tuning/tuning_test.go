package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"marswalk/internal/sim/grid"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	if err := d.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if d.Bounds() != (grid.Bounds{Width: 20, Height: 20}) || d.Agents != 5 {
		t.Fatalf("defaults=%+v", d)
	}
	if d.Start != (grid.Position{X: 10, Y: 10}) {
		t.Fatalf("start=%v", d.Start)
	}
	if d.PollTimeout() != 100*time.Millisecond {
		t.Fatalf("poll=%v", d.PollTimeout())
	}
	if got := d.MarkerTable().String(); got != "@%#*+" {
		t.Fatalf("markers=%q", got)
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	p := writeFile(t, "run.yaml", `
width: 30
agents: 3
start: {x: 1, y: 2}
renderer: headless
max_ticks: 50
log:
  level: debug
observer:
  enabled: true
`)
	got, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Width != 30 || got.Height != 20 || got.Agents != 3 {
		t.Fatalf("size/agents=%+v", got)
	}
	if got.Start != (grid.Position{X: 1, Y: 2}) || got.Renderer != RendererHeadless || got.MaxTicks != 50 {
		t.Fatalf("got=%+v", got)
	}
	if got.Log.Level != "debug" || got.Log.Dir != "./logs" {
		t.Fatalf("log=%+v", got.Log)
	}
	if !got.Observer.Enabled || got.Observer.Addr != "127.0.0.1:8089" {
		t.Fatalf("observer=%+v", got.Observer)
	}
	if !got.Record {
		t.Fatalf("record default lost")
	}
}

func TestLoad_TOML(t *testing.T) {
	p := writeFile(t, "run.toml", `
height = 12
seed = 42
markers = "ABCDEF"
agents = 6
record = false

[start]
x = 0
y = 11

[log]
console = true
`)
	got, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Height != 12 || got.Seed != 42 || got.Agents != 6 || got.Record {
		t.Fatalf("got=%+v", got)
	}
	if got.Start != (grid.Position{X: 0, Y: 11}) {
		t.Fatalf("start=%v", got.Start)
	}
	if len(got.MarkerTable()) != 6 || !got.Log.Console {
		t.Fatalf("markers=%q console=%v", got.Markers, got.Log.Console)
	}
}

func TestLoad_RejectsUnknownExtension(t *testing.T) {
	p := writeFile(t, "run.json", `{}`)
	if _, err := Load(p); err == nil || !strings.Contains(err.Error(), "unsupported extension") {
		t.Fatalf("err=%v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mut     func(*Tuning)
		wantErr bool
	}{
		{"defaults", func(*Tuning) {}, false},
		{"more agents than markers", func(t *Tuning) { t.Agents = 9 }, false},
		{"zero width", func(t *Tuning) { t.Width = 0 }, true},
		{"no agents", func(t *Tuning) { t.Agents = 0 }, true},
		{"start outside", func(t *Tuning) { t.Start = grid.Position{X: 20, Y: 0} }, true},
		{"duplicate markers", func(t *Tuning) { t.Markers = "@@" }, true},
		{"negative poll", func(t *Tuning) { t.PollTimeoutMs = -1 }, true},
		{"unknown renderer", func(t *Tuning) { t.Renderer = "gpu" }, true},
		{"observer without addr", func(t *Tuning) { t.Observer = Observer{Enabled: true} }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tu := Defaults()
			tc.mut(&tu)
			err := tu.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tc.wantErr)
			}
		})
	}
}

func TestSave_RoundTripsThroughLoad(t *testing.T) {
	want := Defaults()
	want.Seed = 99
	want.Renderer = RendererText
	p := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := Save(p, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
}
