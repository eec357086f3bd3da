package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"HOST", "PORT", "DEBUG", "UPLOAD_DIR", "MAX_UPLOAD_BYTES", "RATE_LIMIT", "RATE_BURST",
	"EXTRACTOR", "EXTRACT_TIMEOUT", "GRAMMAR_PRESET", "GRAMMAR_FILE",
	"GOOGLE_CLOUD_PROJECT", "GOOGLE_CLOUD_LOCATION", "DOCUMENT_AI_PROCESSOR_ID",
	"DOCUMENT_AI_PROCESSOR_VERSION", "GOOGLE_APPLICATION_CREDENTIALS", "GOOGLE_CREDENTIALS",
	"GOOGLE_SHEET_URL", "GOOGLE_SHEET_WORKSHEET",
	"LOG_LEVEL", "LOG_FORMAT", "LOG_TIME_FORMAT", "LOG_OUTPUT",
}

// clearEnv blanks every variable Load reads; getEnv treats empty as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:5000", cfg.Addr())
	assert.False(t, cfg.Debug)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.Extractor)
	assert.Equal(t, int64(16<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 120*time.Second, cfg.ExtractTimeout)
	assert.Equal(t, os.TempDir(), cfg.UploadDir)
	assert.Zero(t, cfg.RateLimit)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "8080")
	t.Setenv("DEBUG", "true")
	t.Setenv("EXTRACTOR", "DocumentAI")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "school-42")
	t.Setenv("DOCUMENT_AI_PROCESSOR_ID", "abc123")
	t.Setenv("EXTRACT_TIMEOUT", "30")
	t.Setenv("RATE_LIMIT", "0.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Addr())
	assert.Equal(t, "debug", cfg.LogLevel, "DEBUG raises the default level")
	assert.Equal(t, "documentai", cfg.Extractor)
	assert.Equal(t, 0.5, cfg.RateLimit)

	g := cfg.GetGoogleConfig()
	assert.Equal(t, "school-42", g.ProjectID)
	assert.Equal(t, "us", g.Location)
	assert.Equal(t, 30*time.Second, g.Timeout)

	t.Setenv("LOG_LEVEL", "warn")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "warn", cfg.GetLoggerConfig().Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"port not a number", map[string]string{"PORT": "http"}, "PORT"},
		{"port out of range", map[string]string{"PORT": "70000"}, "PORT"},
		{"debug not a bool", map[string]string{"DEBUG": "maybe"}, "DEBUG"},
		{"unknown extractor", map[string]string{"EXTRACTOR": "camelot"}, "EXTRACTOR"},
		{"documentai without processor", map[string]string{"EXTRACTOR": "documentai", "GOOGLE_CLOUD_PROJECT": "p"}, "DOCUMENT_AI_PROCESSOR_ID"},
		{"unknown preset", map[string]string{"GRAMMAR_PRESET": "fancy"}, "GRAMMAR_PRESET"},
		{"negative rate", map[string]string{"RATE_LIMIT": "-1"}, "RATE_LIMIT"},
		{"zero upload limit", map[string]string{"MAX_UPLOAD_BYTES": "0"}, "MAX_UPLOAD_BYTES"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestGrammar(t *testing.T) {
	clearEnv(t)
	t.Setenv("GRAMMAR_PRESET", "stacked")

	cfg, err := Load()
	require.NoError(t, err)
	g, err := cfg.Grammar()
	require.NoError(t, err)
	assert.Equal(t, []string{"\n"}, g.TeacherSeparators)

	path := filepath.Join(t.TempDir(), "grammar.toml")
	require.NoError(t, os.WriteFile(path, []byte(`class_teacher_markers = ["#"]`+"\n"), 0o600))
	cfg.GrammarFile = path
	g, err = cfg.Grammar()
	require.NoError(t, err)
	assert.Equal(t, []string{"#"}, g.ClassTeacherMarkers)
	assert.Equal(t, []string{"\n"}, g.TeacherSeparators, "file overlays the preset")
}
