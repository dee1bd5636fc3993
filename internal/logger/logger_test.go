package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/lutefd/draftpoints-api/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LogConfig
		wantErr bool
		debug   bool
	}{
		{name: "defaults", cfg: config.LogConfig{}},
		{name: "development console", cfg: config.LogConfig{Level: "debug", Development: true}, debug: true},
		{name: "json upper case", cfg: config.LogConfig{Level: "WARN", Encoding: "JSON"}},
		{name: "sampling", cfg: config.LogConfig{Sampling: true}},
		{name: "bad level", cfg: config.LogConfig{Level: "loud"}, wantErr: true},
		{name: "bad encoding", cfg: config.LogConfig{Encoding: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if got := log.Core().Enabled(zapcore.DebugLevel); got != tt.debug {
				t.Fatalf("debug enabled = %v, want %v", got, tt.debug)
			}
		})
	}
}
