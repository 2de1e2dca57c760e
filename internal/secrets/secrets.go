// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text
// files. Each file in the directory represents one secret: the filename is the
// key name and the file contents (trimmed) are the value. Environment variables
// override file contents so containerized deployments need no secrets directory.
//
// Supported key files: synthesis-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const envPrefix = "RESEARCH_PILOT_"

// Store holds the secrets loaded at startup.
type Store struct {
	values map[string]string
}

// Load reads all files in dir into a Store. A missing directory or missing
// files are not errors. Unreadable files produce a warning on stderr but do
// not abort.
func Load(dir string) (*Store, error) {
	values := make(map[string]string)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &Store{values: values}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

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

		if value := strings.TrimSpace(string(data)); value != "" {
			values[name] = value
		}
	}

	return &Store{values: values}, nil
}

// Get returns the value for key, or "" when the key is unknown. An
// environment variable named after the key (RESEARCH_PILOT_ plus the key in
// upper snake case, e.g. RESEARCH_PILOT_SYNTHESIS_API_KEY) wins over the
// file contents.
func (s *Store) Get(key string) string {
	if v := os.Getenv(EnvName(key)); v != "" {
		return v
	}
	if s == nil {
		return ""
	}
	return s.values[key]
}

// Keys returns the names of all file-loaded secrets, sorted.
func (s *Store) Keys() []string {
	if s == nil {
		return nil
	}
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EnvName maps a secret key to its override environment variable.
func EnvName(key string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}
