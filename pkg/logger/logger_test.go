package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"
)

func TestLogger_DefaultInitialization(t *testing.T) {
	// Log should be initialized by default and not panic
	if Log == nil {
		t.Fatal("Log should not be nil by default")
	}

	// Should not panic
	Log.Info("Testing default logger")
}

func TestInitLogger_WritesJSONToWriter(t *testing.T) {
	saved, savedLevel := Log, Level()
	defer func() { Log = saved; level.Set(savedLevel) }()

	var buf bytes.Buffer
	InitLogger("debug", &buf)
	Log.With("component", "binder").Debug("delivered", "signal", "interrupt")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "delivered" || rec["component"] != "binder" || rec["signal"] != "interrupt" {
		t.Errorf("unexpected record %v", rec)
	}
	if _, ok := rec["source"]; !ok {
		t.Error("expected source attribute")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetLevel_AffectsDerivedLoggers(t *testing.T) {
	saved, savedLevel := Log, Level()
	defer func() { Log = saved; level.Set(savedLevel) }()

	var buf bytes.Buffer
	InitLogger("info", &buf)
	child := Log.With("component", "watch")

	child.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug record written at info level: %q", buf.String())
	}

	SetLevel("debug")
	if Level() != slog.LevelDebug {
		t.Fatalf("Level() = %v, want debug", Level())
	}
	child.Debug("shown")
	if !bytes.Contains(buf.Bytes(), []byte(`"shown"`)) {
		t.Errorf("debug record missing after SetLevel: %q", buf.String())
	}
}

func TestSourceIsTheCaller(t *testing.T) {
	saved, savedLevel := Log, Level()
	defer func() { Log = saved; level.Set(savedLevel) }()

	var buf bytes.Buffer
	InitLogger("info", &buf)
	Log.With("component", "test").Info("where")

	var rec struct {
		Source struct {
			File     string `json:"file"`
			Function string `json:"function"`
		} `json:"source"`
	}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if got := filepath.Base(rec.Source.File); got != "logger_test.go" {
		t.Errorf("source file = %q, want logger_test.go", got)
	}
	if want := "TestSourceIsTheCaller"; !bytes.HasSuffix([]byte(rec.Source.Function), []byte(want)) {
		t.Errorf("source function = %q, want suffix %q", rec.Source.Function, want)
	}
}
