package logger

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "default config",
			config:  DefaultConfig(),
			wantErr: false,
		},
		{
			name: "console output",
			config: &Config{
				Level:  "info",
				Format: "console",
				Output: "console",
			},
			wantErr: false,
		},
		{
			name: "invalid level",
			config: &Config{
				Level:  "verbose",
				Format: "json",
				Output: "console",
			},
			wantErr: true,
		},
		{
			name: "invalid format",
			config: &Config{
				Level:  "info",
				Format: "xml",
				Output: "console",
			},
			wantErr: true,
		},
		{
			name: "file output without filename",
			config: &Config{
				Level:  "info",
				Format: "json",
				Output: "file",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && log == nil {
				t.Fatal("New() returned nil logger without error")
			}
		})
	}
}

func TestFileOutput(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "test.log")

	log, err := New(&Config{
		Level:  "debug",
		Format: "json",
		Output: "file",
		File: FileConfig{
			Filename:   filename,
			MaxSize:    10,
			MaxAge:     7,
			MaxBackups: 3,
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	log.Info("test message", zap.String("key", "value"))
	_ = log.Sync()
}

func TestWith(t *testing.T) {
	log, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	child := log.With(zap.String("component", "test"))
	if child == nil {
		t.Fatal("With() returned nil")
	}
	child.Info("message from child logger")
}

func TestGlobal(t *testing.T) {
	if err := InitGlobal(DefaultConfig()); err != nil {
		t.Fatalf("InitGlobal() error = %v", err)
	}
	if L() == nil {
		t.Fatal("L() returned nil after InitGlobal")
	}
}
