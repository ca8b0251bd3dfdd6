package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/goodtune/focuswatch/internal/config"
	"github.com/goodtune/focuswatch/internal/stats"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"90s", 90 * time.Second},
		{"", time.Minute},
		{"soon", time.Minute},
	}
	for _, tt := range tests {
		if got := parseDuration(tt.in, time.Minute); got != tt.want {
			t.Errorf("parseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetupLoggerWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "focuswatch.log")
	var console bytes.Buffer

	logger := setupLogger(config.LoggingConfig{
		Level:      "info",
		Format:     "json",
		File:       path,
		MaxSizeMB:  1,
		MaxBackups: 1,
	}, &console)
	logger.Info().Msg("hello")
	logger.Debug().Msg("hidden")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"message":"hello"`) || strings.Contains(string(data), "hidden") {
		t.Fatalf("unexpected log file contents %q", data)
	}
	if !strings.Contains(console.String(), "hello") {
		t.Fatalf("expected console copy, got %q", console.String())
	}
}

func TestOpenStorageRejectsUnknownType(t *testing.T) {
	if _, err := openStorage(config.StorageConfig{Type: "etcd"}, false); err == nil {
		t.Fatal("expected error for unsupported storage type")
	}
}

func TestOpenStorageBoltReadOnly(t *testing.T) {
	cfg := config.StorageConfig{Type: "bolt", Path: filepath.Join(t.TempDir(), "focuswatch.bolt")}

	writer, err := openStorage(cfg, false)
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	reader, err := openStorage(cfg, true)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer func() { _ = reader.Close() }()

	if err := reader.Events().Append(context.Background(), []byte(`{}`)); err == nil {
		t.Fatal("expected read-only store to reject appends")
	}
}

func TestNotifyStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notify.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = conn.Close() }()

	t.Setenv("NOTIFY_SOCKET", path)
	notifyStatus(zerolog.Nop(), "Tracking focused window")

	if err := conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read notification: %v", err)
	}
	if got := string(buf[:n]); got != "STATUS=Tracking focused window" {
		t.Fatalf("unexpected notification %q", got)
	}
}

func TestDiffNodes(t *testing.T) {
	def := config.Defaults()
	cfg := *def
	cfg.API.Port = 6000
	cfg.Classifier.Keywords = []string{"youtube"}

	var a, b yaml.Node
	if err := a.Encode(&cfg); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := b.Encode(def); err != nil {
		t.Fatalf("encode: %v", err)
	}

	changed := make(map[string]bool)
	diffNodes("", &a, &b, changed)

	for _, key := range []string{"api.port", "classifier.keywords"} {
		if !changed[key] {
			t.Errorf("expected %s to be marked changed", key)
		}
	}
	if changed["api.bind_address"] || changed["stats.top_n"] {
		t.Errorf("unexpected changes: %v", changed)
	}
}

func TestRenderDaily(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer

	renderDaily(&out, &stats.DailyStats{
		Date:            "2024-05-01",
		TotalTimeMS:     120000,
		MissingSnapshot: true,
		TopWindows: []stats.WindowTotal{
			{WindowTitle: strings.Repeat("x", 80), ProcessName: "editor", TotalSeconds: 120},
		},
		Distractions: []stats.Distraction{
			{WindowTitle: "A", Reason: "off task"},
		},
	})

	text := out.String()
	for _, want := range []string{"Activity for 2024-05-01", "Tracked time:  2m0s", "No window_durations snapshot", "...", "off task"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected output to contain %q:\n%s", want, text)
		}
	}
}
