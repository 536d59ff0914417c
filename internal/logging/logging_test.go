package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "text info", cfg: Config{Level: "info"}},
		{name: "json debug", cfg: Config{Level: "DEBUG", Format: "json"}},
		{name: "warn with offset", cfg: Config{Level: "warn+2", Format: "text"}},
		{name: "bad level", cfg: Config{Level: "loud"}, wantErr: true},
		{name: "empty level", cfg: Config{Level: ""}, wantErr: true},
		{name: "bad format", cfg: Config{Level: "info", Format: "xml"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.cfg.Writer = &buf
			l, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tt.wantErr)
			}
			if err == nil && l == nil {
				t.Fatal("nil logger")
			}
		})
	}
}

func TestNewJSONOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: JSONFormat, Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}
	l.Debug("hidden")
	l.Info("relayed", "handle", 7)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines want 1: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["msg"] != "relayed" || rec["handle"] != float64(7) {
		t.Fatalf("unexpected record %v", rec)
	}
}
