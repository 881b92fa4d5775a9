package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConf(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadGameConfYAML(t *testing.T) {
	path := writeConf(t, "game.yaml", `
mud_name: Testbed
bolt_path: data/game.bolt
world_path: /srv/world.yaml
journal_path: journal.db
metrics_addr: ":9120"
max_steps: 2500
run_timeout_ms: 250
default_mode: 2
echo_warnings: false
`)
	gc, err := LoadGameConf(path)
	if err != nil {
		t.Fatalf("LoadGameConf: %v", err)
	}
	dir := filepath.Dir(path)
	if gc.MudName != "Testbed" || gc.MaxSteps != 2500 || gc.DefaultMode != 2 || gc.EchoWarnings {
		t.Errorf("conf = %+v", gc)
	}
	if gc.BoltPath != filepath.Join(dir, "data/game.bolt") {
		t.Errorf("bolt_path not resolved: %s", gc.BoltPath)
	}
	if gc.WorldPath != "/srv/world.yaml" {
		t.Errorf("absolute world_path changed: %s", gc.WorldPath)
	}
	if gc.RunTimeout() != 250*time.Millisecond {
		t.Errorf("RunTimeout = %v", gc.RunTimeout())
	}
	// keys the file leaves out keep their defaults
	if !gc.JournalEnabled || gc.MaxDepth != DefaultGameConf().MaxDepth {
		t.Errorf("defaults lost: %+v", gc)
	}
}

func TestLoadGameConfText(t *testing.T) {
	path := writeConf(t, "game.conf", `# comment
mud_name	Plain Text MUCK
max_steps 10
journal_enabled no
echo_warnings yes
run_timeout_ms 0
mystery_option 7
`)
	gc, err := LoadGameConf(path)
	if err != nil {
		t.Fatalf("LoadGameConf: %v", err)
	}
	if gc.MudName != "Plain Text MUCK" || gc.MaxSteps != 10 || gc.JournalEnabled || !gc.EchoWarnings {
		t.Errorf("conf = %+v", gc)
	}
	if gc.RunTimeout() != 0 {
		t.Errorf("RunTimeout = %v", gc.RunTimeout())
	}
}

func TestLoadGameConfInvalid(t *testing.T) {
	tests := []struct {
		name, body, want string
	}{
		{"game.yaml", "default_mode: 5\n", "default_mode"},
		{"game.yaml", "max_steps: -1\n", "max_steps"},
		{"game.yaml", "max_depth: 0\n", "max_depth"},
		{"game.yaml", "journal_path: \"\"\n", "journal_path"},
		{"game.yaml", "max_steps: [1]\n", "parsing YAML"},
	}
	for _, tt := range tests {
		_, err := LoadGameConf(writeConf(t, tt.name, tt.body))
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%q: err = %v, want %q", tt.body, err, tt.want)
		}
	}
	if _, err := LoadGameConf(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}
