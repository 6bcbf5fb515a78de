package config

import (
	"bufio"
	"errors"
	"os"
	"strings"
)

const (
	EnvAPIKey    = "DELTA_API_KEY"
	EnvAPISecret = "DELTA_API_SECRET"
)

// Credentials are read from the environment only, never from the yaml file.
type Credentials struct {
	APIKey    string
	APISecret string
}

// LoadCredentials returns the exchange key pair from the environment.
func LoadCredentials() (Credentials, error) {
	creds := Credentials{
		APIKey:    strings.TrimSpace(os.Getenv(EnvAPIKey)),
		APISecret: strings.TrimSpace(os.Getenv(EnvAPISecret)),
	}
	if creds.APIKey == "" {
		return Credentials{}, errors.New(EnvAPIKey + " is required")
	}
	if creds.APISecret == "" {
		return Credentials{}, errors.New(EnvAPISecret + " is required")
	}
	return creds, nil
}

// LoadEnv reads a .env file and sets variables that are not already set.
// A missing file is not an error.
func LoadEnv(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, val, ok := parseEnvLine(scanner.Text())
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, val)
	}
	return scanner.Err()
}

func parseEnvLine(raw string) (string, string, bool) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")
	key, val, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	val = strings.TrimSpace(val)
	if len(val) >= 2 {
		if (val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'') {
			val = val[1 : len(val)-1]
		}
	}
	if key == "" {
		return "", "", false
	}
	return key, val, true
}
