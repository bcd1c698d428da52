// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials, preferring environment
// variables and falling back to a directory of plain-text files. Each
// file in the directory represents one secret: the filename is the key
// name and the file contents (trimmed) are the value.
//
// Supported key files: scopus-api-key, core-api-key,
// semantic-scholar-api-key, anthropic-api-key, openalex-email.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Environment variable names recognized by Value.
const (
	EnvScopusAPIKey       = "SCOPUS_API_KEY"
	EnvCOREAPIKey         = "CORE_API_KEY"
	EnvSemanticScholarKey = "SEMANTIC_SCHOLAR_KEY"
	EnvAnthropicAPIKey    = "ANTHROPIC_API_KEY"
	EnvOpenAlexEmail      = "OPENALEX_EMAIL"
	EnvDefaultLLMModel    = "DEFAULT_LLM_MODEL"
)

// envAliases lists alternate environment names also accepted for a key.
var envAliases = map[string][]string{
	EnvSemanticScholarKey: {"SEMANTIC_SCHOLAR_API_KEY"},
}

// fileFallbacks maps each environment variable to its secrets-directory
// filename.
var fileFallbacks = map[string]string{
	EnvScopusAPIKey:       "scopus-api-key",
	EnvCOREAPIKey:         "core-api-key",
	EnvSemanticScholarKey: "semantic-scholar-api-key",
	EnvAnthropicAPIKey:    "anthropic-api-key",
	EnvOpenAlexEmail:      "openalex-email",
	EnvDefaultLLMModel:    "default-llm-model",
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Value resolves the secret for envKey: the environment wins (canonical
// name first, then any alias), then the loaded directory map, then empty.
func Value(files map[string]string, envKey string) string {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v
	}
	for _, alias := range envAliases[envKey] {
		if v := strings.TrimSpace(os.Getenv(alias)); v != "" {
			return v
		}
	}
	if file, ok := fileFallbacks[envKey]; ok {
		return files[file]
	}
	return ""
}
