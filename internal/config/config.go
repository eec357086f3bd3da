package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"timetable/internal/decoder"
	"timetable/internal/extract"
	"timetable/internal/logger"
)

type Config struct {
	// Server Configuration
	Host           string
	Port           int
	Debug          bool
	UploadDir      string
	MaxUploadBytes int64
	RateLimit      float64
	RateBurst      int

	// Extraction Configuration
	Extractor      string
	ExtractTimeout time.Duration

	// Cell Grammar Configuration
	GrammarPreset string
	GrammarFile   string

	// Google Cloud Configuration
	GoogleCloudProject         string
	GoogleCloudLocation        string
	DocumentAIProcessorID      string
	DocumentAIProcessorVersion string
	GoogleCredentialsFile      string
	GoogleCredentials          string

	// Google Sheets Configuration
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	p := &envParser{}

	config := &Config{
		Host:                       getEnv("HOST", "0.0.0.0"),
		Port:                       p.int("PORT", 5000),
		Debug:                      p.bool("DEBUG", false),
		UploadDir:                  getEnv("UPLOAD_DIR", os.TempDir()),
		MaxUploadBytes:             int64(p.int("MAX_UPLOAD_BYTES", 16<<20)),
		RateLimit:                  p.float("RATE_LIMIT", 0),
		RateBurst:                  p.int("RATE_BURST", 5),
		Extractor:                  strings.ToLower(getEnv("EXTRACTOR", extract.EngineText)),
		ExtractTimeout:             time.Duration(p.int("EXTRACT_TIMEOUT", 120)) * time.Second,
		GrammarPreset:              getEnv("GRAMMAR_PRESET", decoder.PresetDefault),
		GrammarFile:                getEnv("GRAMMAR_FILE", ""),
		GoogleCloudProject:         getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:        getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID:      getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocumentAIProcessorVersion: getEnv("DOCUMENT_AI_PROCESSOR_VERSION", ""),
		GoogleCredentialsFile:      getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		GoogleCredentials:          getEnv("GOOGLE_CREDENTIALS", ""),
		GoogleSheetURL:             getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet:       getEnv("GOOGLE_SHEET_WORKSHEET", "Timetable"),
		LogFormat:                  getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:              getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:                  getEnv("LOG_OUTPUT", "stdout"),
	}

	// DEBUG only raises verbosity when LOG_LEVEL is not set explicitly
	defaultLevel := "info"
	if config.Debug {
		defaultLevel = "debug"
	}
	config.LogLevel = getEnv("LOG_LEVEL", defaultLevel)

	if err := errors.Join(p.errs...); err != nil {
		return nil, fmt.Errorf("config parsing failed: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("RATE_LIMIT must not be negative")
	}
	if c.ExtractTimeout < 0 {
		return fmt.Errorf("EXTRACT_TIMEOUT must not be negative")
	}
	if _, err := decoder.Preset(c.GrammarPreset); err != nil {
		return fmt.Errorf("GRAMMAR_PRESET: %w", err)
	}

	switch c.Extractor {
	case extract.EngineText, extract.EngineVision:
	case extract.EngineDocumentAI:
		if c.GoogleCloudProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for the documentai extractor")
		}
		if c.DocumentAIProcessorID == "" {
			return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required for the documentai extractor")
		}
	default:
		return fmt.Errorf("EXTRACTOR must be one of text, documentai, vision, got %q", c.Extractor)
	}
	return nil
}

// Addr returns the listen address of the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Grammar returns the configured cell grammar: the preset, overlaid with
// GRAMMAR_FILE when set.
func (c *Config) Grammar() (decoder.Grammar, error) {
	g, err := decoder.Preset(c.GrammarPreset)
	if err != nil {
		return decoder.Grammar{}, err
	}
	if c.GrammarFile == "" {
		return g, nil
	}
	return decoder.LoadGrammar(g, c.GrammarFile)
}

// GetGoogleConfig returns the settings of the Google extraction engines
func (c *Config) GetGoogleConfig() extract.GoogleConfig {
	return extract.GoogleConfig{
		ProjectID:        c.GoogleCloudProject,
		Location:         c.GoogleCloudLocation,
		ProcessorID:      c.DocumentAIProcessorID,
		ProcessorVersion: c.DocumentAIProcessorVersion,
		CredentialsJSON:  c.GoogleCredentials,
		CredentialsFile:  c.GoogleCredentialsFile,
		Timeout:          c.ExtractTimeout,
	}
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envParser reads typed variables and collects every parse error.
type envParser struct {
	errs []error
}

func (p *envParser) int(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not an integer", key, value))
		return defaultValue
	}
	return n
}

func (p *envParser) float(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a number", key, value))
		return defaultValue
	}
	return f
}

func (p *envParser) bool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a boolean", key, value))
		return defaultValue
	}
	return b
}
