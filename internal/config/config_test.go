package config

import (
	"log/slog"
	"path/filepath"
	"testing"
)

// setBaseEnv points all writable directories at a temp dir so Load does not
// touch the working tree.
func setBaseEnv(t *testing.T) {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("VECTOR_STORE_DIR", filepath.Join(tmp, "vectors"))
	t.Setenv("UPLOADS_DIR", filepath.Join(tmp, "uploads"))
	t.Setenv("DB_PATH", filepath.Join(tmp, "data", "studylm.db"))
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MaxChunkTokens != 2000 {
		t.Errorf("MaxChunkTokens = %d, want 2000", cfg.MaxChunkTokens)
	}
	if cfg.MaxPDFMB != 100 {
		t.Errorf("MaxPDFMB = %d, want 100", cfg.MaxPDFMB)
	}
	if cfg.MaxPDFPages != 2000 {
		t.Errorf("MaxPDFPages = %d, want 2000", cfg.MaxPDFPages)
	}
	if !cfg.OCREnabled {
		t.Error("OCREnabled should default to true")
	}
	if cfg.OCRDPI != 300 {
		t.Errorf("OCRDPI = %d, want 300", cfg.OCRDPI)
	}
	if cfg.OCRTextThreshold != 30 {
		t.Errorf("OCRTextThreshold = %d, want 30", cfg.OCRTextThreshold)
	}
	if cfg.EmbeddingModel != "text-embedding-3-small" {
		t.Errorf("EmbeddingModel = %q", cfg.EmbeddingModel)
	}
	if cfg.ChatModel != "gpt-4o-mini" {
		t.Errorf("ChatModel = %q", cfg.ChatModel)
	}
	if len(cfg.ChatModelsAllowed) != 4 {
		t.Errorf("ChatModelsAllowed = %v, want 4 entries", cfg.ChatModelsAllowed)
	}
	if cfg.IngestWorkers != 2 {
		t.Errorf("IngestWorkers = %d, want 2", cfg.IngestWorkers)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}
}

func TestLoad_OCRDPIClamped(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("OCR_DPI", "40")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.OCRDPI != 72 {
		t.Errorf("OCRDPI = %d, want clamp to 72", cfg.OCRDPI)
	}
}

func TestLoad_InvalidInt(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("MAX_CHUNK_TOKENS", "not-a-number")

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for invalid MAX_CHUNK_TOKENS")
	}
}

func TestLoad_ZeroChunkTokensRejected(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("MAX_CHUNK_TOKENS", "0")

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for MAX_CHUNK_TOKENS=0")
	}
}

func TestLoad_CSVParsing(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("CHAT_MODELS_ALLOWED", "gpt-4o, gpt-4o-mini ,")
	t.Setenv("CORS_ALLOW_ORIGINS", "http://localhost:5173,https://studylm.app")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.ChatModelsAllowed) != 2 {
		t.Errorf("ChatModelsAllowed = %v, want 2 entries", cfg.ChatModelsAllowed)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("CORSOrigins = %v, want 2 entries", cfg.CORSOrigins)
	}
	if !cfg.ModelAllowed("gpt-4o-mini") {
		t.Error("ModelAllowed(gpt-4o-mini) = false, want true")
	}
	if cfg.ModelAllowed("gpt-3.5-turbo") {
		t.Error("ModelAllowed(gpt-3.5-turbo) = true, want false")
	}
}

func TestLoad_BoolParsing(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"1", true},
		{"true", true},
		{"YES", true},
		{"on", true},
		{"0", false},
		{"false", false},
		{"off", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv("OCR_ENABLED", tt.value)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.OCREnabled != tt.want {
				t.Errorf("OCREnabled = %v, want %v", cfg.OCREnabled, tt.want)
			}
		})
	}
}
