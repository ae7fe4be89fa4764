package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	portEnvVar     = "PORT"
	appNameVar     = "APP_NAME"
	envVar         = "ENV"
	logLevelEnvVar = "LOG_LEVEL"
	baseURLVar     = "BASE_URL"
)

type EnvVars struct {
	Port     string
	AppName  string
	Env      string
	LogLevel string
	BaseURL  string
}

var _ EnvConfig = EnvVars{}

func loadEnvVars() EnvVars {
	port := GetEnv(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return EnvVars{
		Port:     port,
		AppName:  GetEnv(appNameVar, "Storefront"),
		Env:      strings.ToUpper(GetEnv(envVar, "DEV")),
		LogLevel: GetEnv(logLevelEnvVar, "info"),
		BaseURL:  strings.TrimSuffix(GetEnv(baseURLVar, "http://localhost:8080"), "/"),
	}
}

func (e EnvVars) GetPort() string {
	return e.Port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return e.Env
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

// GetBaseURL returns the public base URL of the storefront (e.g., "https://shop.example.com")
func (e EnvVars) GetBaseURL() string {
	return e.BaseURL
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func getDuration(envVar string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(envVar)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", envVar, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive", envVar)
	}
	return d, nil
}

func getBool(envVar string, defaultValue bool) (bool, error) {
	raw := os.Getenv(envVar)
	if raw == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", envVar, err)
	}
	return b, nil
}

func getInt(envVar string, defaultValue int) (int, error) {
	raw := os.Getenv(envVar)
	if raw == "" {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", envVar, err)
	}
	return i, nil
}

// getList splits a comma separated variable, dropping empty entries.
func getList(envVar string, defaultValue []string) []string {
	raw := os.Getenv(envVar)
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
