package config

import (
	"os"
	"strconv"
)

// Config holds engine configuration for one CLI invocation.
type Config struct {
	RealmID     string
	CAID        string
	Root        string
	WitnessLog  string
	LogLevel    string
	Conventions string
	KeyDir      string
	Profile     string
	TimeoutMS   int
}

// Load loads configuration from environment variables.
func Load() *Config {
	realm := os.Getenv("OPIC_REALM")
	if realm == "" {
		realm = "default_realm"
	}

	ca := os.Getenv("OPIC_CA")
	if ca == "" {
		ca = "default_ca"
	}

	root := os.Getenv("OPIC_ROOT")
	if root == "" {
		root = "."
	}

	logLevel := os.Getenv("OPIC_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	keyDir := os.Getenv("OPIC_KEYS")
	if keyDir == "" {
		keyDir = ".opic/keys"
	}

	timeoutMS := 0
	if raw := os.Getenv("OPIC_TIMEOUT_MS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			timeoutMS = n
		}
	}

	return &Config{
		RealmID:     realm,
		CAID:        ca,
		Root:        root,
		WitnessLog:  os.Getenv("OPIC_WITNESS_LOG"),
		LogLevel:    logLevel,
		Conventions: os.Getenv("OPIC_CONVENTIONS"),
		KeyDir:      keyDir,
		Profile:     os.Getenv("OPIC_PROFILE"),
		TimeoutMS:   timeoutMS,
	}
}
