package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var policyYAML []byte

type Config struct {
	Detector    DetectorConfig
	Recognition RecognitionConfig
	Database    DatabaseConfig
}

type DetectorConfig struct {
	URL     string // face detection/embedding server, defaults to http://localhost:8000
	Timeout int    // request timeout in seconds (default 30)
}

type RecognitionConfig struct {
	Dim                 int     // embedding dimensionality (default 512)
	AcceptThreshold     float64 // minimum similarity strictly required for a match
	DetectionConfidence float64 // minimum detector score for a face to be matched
	TopK                int     // default candidate count for diagnostic queries
	Workers             int     // bounded worker pool size for match tasks
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// policyFile mirrors the embedded policy.yaml layout.
type policyFile struct {
	Policy struct {
		AcceptThreshold     float64 `yaml:"accept_threshold"`
		DetectionConfidence float64 `yaml:"detection_confidence"`
		TopK                int     `yaml:"top_k"`
		Workers             int     `yaml:"workers"`
	} `yaml:"policy"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float in (0, 1].
// Returns the default value if the env var is unset, empty, or out of range.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

func Load() *Config {
	var policy policyFile
	if err := yaml.Unmarshal(policyYAML, &policy); err != nil {
		// This is an embedded file so this error should never happen in practice.
		panic("failed to unmarshal embedded policy.yaml: " + err.Error())
	}

	return &Config{
		Detector: DetectorConfig{
			URL:     os.Getenv("DETECTOR_URL"),
			Timeout: envInt("DETECTOR_TIMEOUT", 30),
		},
		Recognition: RecognitionConfig{
			Dim:                 envInt("EMBEDDING_DIM", 512),
			AcceptThreshold:     envFloat("ACCEPT_THRESHOLD", policy.Policy.AcceptThreshold),
			DetectionConfidence: envFloat("DETECTION_CONFIDENCE", policy.Policy.DetectionConfidence),
			TopK:                envInt("TOP_K", policy.Policy.TopK),
			Workers:             envInt("RECOGNITION_WORKERS", policy.Policy.Workers),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
	}
}
