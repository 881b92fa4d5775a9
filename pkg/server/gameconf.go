package server

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/crystal-mush/gomuck/pkg/muf"
	"gopkg.in/yaml.v3"
)

// GameConf holds host-level configuration for running programs.
// Supports both YAML (.yaml/.yml) and plain "key value" text (.conf) formats.
type GameConf struct {
	// --- Identity ---
	MudName string `yaml:"mud_name"`

	// --- Storage ---
	BoltPath    string `yaml:"bolt_path"`    // bbolt database; empty keeps the world in memory
	WorldPath   string `yaml:"world_path"`   // YAML seed imported when the bolt file is empty
	JournalPath string `yaml:"journal_path"` // SQLite run journal
	ArchiveDir  string `yaml:"archive_dir"`  // Where Archive writes backups
	SourceDir   string `yaml:"source_dir"`   // .muf files included in backups

	// --- Observability ---
	MetricsAddr    string `yaml:"metrics_addr"`    // Prometheus listen address, e.g. ":9120"; empty disables
	JournalEnabled bool   `yaml:"journal_enabled"` // Record every run outcome in the journal

	// --- Interpreter limits ---
	MaxSteps     int  `yaml:"max_steps"`      // Datums per run before INTERRUPTED, 0 = unlimited
	MaxDepth     int  `yaml:"max_depth"`      // Nested word calls
	RunTimeoutMs int  `yaml:"run_timeout_ms"` // Wall-clock budget per run, 0 = unlimited
	DefaultMode  int  `yaml:"default_mode"`   // 0 preempt, 1 foreground, 2 background
	EchoWarnings bool `yaml:"echo_warnings"`  // Show preprocessor warnings to the compiling player

	path string // file the config was loaded from
}

// Path returns the file the config was loaded from, or "" for defaults.
func (gc *GameConf) Path() string { return gc.path }

// DefaultGameConf returns a GameConf with conservative defaults.
func DefaultGameConf() *GameConf {
	return &GameConf{
		MudName:        "GoMuck",
		JournalPath:    "journal.db",
		JournalEnabled: true,
		MaxSteps:       100000,
		MaxDepth:       muf.DefaultMaxDepth,
		RunTimeoutMs:   5000,
		DefaultMode:    int(muf.ModeForeground),
		EchoWarnings:   true,
	}
}

// RunTimeout returns the per-run wall-clock budget, or 0 for none.
func (gc *GameConf) RunTimeout() time.Duration {
	if gc.RunTimeoutMs <= 0 {
		return 0
	}
	return time.Duration(gc.RunTimeoutMs) * time.Millisecond
}

// Validate rejects settings the interpreter cannot honor.
func (gc *GameConf) Validate() error {
	if !muf.ValidMode(int64(gc.DefaultMode)) {
		return fmt.Errorf("gameconf: default_mode %d out of range 0-2", gc.DefaultMode)
	}
	if gc.MaxSteps < 0 {
		return fmt.Errorf("gameconf: max_steps must not be negative")
	}
	if gc.MaxDepth <= 0 {
		return fmt.Errorf("gameconf: max_depth must be positive")
	}
	if gc.JournalEnabled && gc.JournalPath == "" {
		return fmt.Errorf("gameconf: journal_enabled needs journal_path")
	}
	return nil
}

// LoadGameConf loads a game config file. Format is auto-detected by extension:
//   - .yaml / .yml  -> YAML format
//   - .conf / other -> plain "key value" lines
//
// Relative paths in the file are resolved against the file's directory.
func LoadGameConf(path string) (*GameConf, error) {
	var gc *GameConf
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		gc, err = loadGameConfYAML(path)
	default:
		gc, err = loadGameConfText(path)
	}
	if err != nil {
		return nil, err
	}
	gc.path = path
	gc.resolvePaths(filepath.Dir(path))
	if err := gc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return gc, nil
}

func (gc *GameConf) resolvePaths(baseDir string) {
	for _, p := range []*string{&gc.BoltPath, &gc.WorldPath, &gc.JournalPath, &gc.ArchiveDir, &gc.SourceDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(baseDir, *p)
		}
	}
}

// --- YAML loader ---

func loadGameConfYAML(path string) (*GameConf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gameconf: reading %s: %w", path, err)
	}

	gc := DefaultGameConf()
	if err := yaml.Unmarshal(data, gc); err != nil {
		return nil, fmt.Errorf("gameconf: parsing YAML %s: %w", path, err)
	}
	return gc, nil
}

// --- Text loader ---

func loadGameConfText(path string) (*GameConf, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gameconf: %w", err)
	}
	defer f.Close()

	gc := DefaultGameConf()
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}

		key, val := splitKeyVal(line)
		switch strings.ToLower(key) {
		case "mud_name":
			gc.MudName = val
		case "bolt_path":
			gc.BoltPath = val
		case "world_path":
			gc.WorldPath = val
		case "journal_path":
			gc.JournalPath = val
		case "archive_dir":
			gc.ArchiveDir = val
		case "source_dir":
			gc.SourceDir = val
		case "metrics_addr":
			gc.MetricsAddr = val
		case "journal_enabled":
			gc.JournalEnabled = parseBool(val)
		case "max_steps":
			gc.MaxSteps = atoi(val, gc.MaxSteps)
		case "max_depth":
			gc.MaxDepth = atoi(val, gc.MaxDepth)
		case "run_timeout_ms":
			gc.RunTimeoutMs = atoi(val, gc.RunTimeoutMs)
		case "default_mode":
			gc.DefaultMode = atoi(val, gc.DefaultMode)
		case "echo_warnings":
			gc.EchoWarnings = parseBool(val)
		default:
			log.Printf("gameconf: %s:%d: unknown directive %q ignored", path, lineNo, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("gameconf: %s: %w", path, err)
	}
	return gc, nil
}

// splitKeyVal splits a line on the first whitespace (space or tab).
func splitKeyVal(line string) (string, string) {
	for i := 0; i < len(line); i++ {
		if line[i] == ' ' || line[i] == '\t' {
			return line[:i], strings.TrimSpace(line[i+1:])
		}
	}
	return line, ""
}

// --- Helper functions ---

func atoi(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return n
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "yes" || s == "true" || s == "1" || s == "on"
}
