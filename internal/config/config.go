// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads configuration from accounts.yaml and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Account holds connection details for a single mailbox.
type Account struct {
	Address    string   `yaml:"email"`
	Password   string   `yaml:"password"`
	IMAPServer string   `yaml:"imap_server"`
	IMAPPort   int      `yaml:"imap_port"`
	UseTLS     bool     `yaml:"use_tls"`
	Tags       []string `yaml:"tags"`
	Active     bool     `yaml:"active"`

	// Region is the ISO country code used when normalising phone
	// numbers found in this account's mail.
	Region string `yaml:"region"`

	// ExtraBlacklist holds additional anchored sender patterns excluded
	// for this account only, on top of the global rule set.
	ExtraBlacklist []string `yaml:"extra_blacklist"`
}

// Config holds all configuration for the scanner.
type Config struct {
	Accounts []Account

	RulesPath   string
	DataDir     string
	BatchSize   int
	Workers     int
	SourceLabel string // optional override for the contact source column
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Accounts []struct {
		Email          string   `yaml:"email"`
		Password       string   `yaml:"password"`
		IMAPServer     string   `yaml:"imap_server"`
		IMAPPort       int      `yaml:"imap_port"`
		UseTLS         *bool    `yaml:"use_tls"`
		Tags           []string `yaml:"tags"`
		Active         *bool    `yaml:"active"`
		Region         string   `yaml:"region"`
		ExtraBlacklist []string `yaml:"extra_blacklist"`
	} `yaml:"accounts"`
}

// Load reads configuration from accounts.yaml (with env var expansion) and
// environment variables for non-YAML settings. Accounts missing credentials
// or marked inactive are skipped.
func Load(path string) (*Config, error) {
	if path == "" {
		path = envOrDefault("CONFIG_PATH", "config/accounts.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	// Expand ${VAR} references in the YAML so secrets can live in the env
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	cfg := &Config{
		RulesPath:   envOrDefault("RULES_PATH", "config/rules.yaml"),
		DataDir:     envOrDefault("DATA_DIR", "data"),
		BatchSize:   envOrDefaultInt("BATCH_SIZE", 100),
		Workers:     envOrDefaultInt("SCAN_WORKERS", 1),
		SourceLabel: os.Getenv("SOURCE_LABEL"),
	}

	for _, a := range raw.Accounts {
		acc := Account{
			Address:        a.Email,
			Password:       a.Password,
			IMAPServer:     a.IMAPServer,
			IMAPPort:       a.IMAPPort,
			UseTLS:         true,
			Tags:           a.Tags,
			Active:         true,
			Region:         a.Region,
			ExtraBlacklist: a.ExtraBlacklist,
		}
		if a.UseTLS != nil {
			acc.UseTLS = *a.UseTLS
		}
		if a.Active != nil {
			acc.Active = *a.Active
		}

		// Skip accounts with empty credentials (commented out in YAML)
		if acc.Address == "" || acc.Password == "" || acc.IMAPServer == "" {
			continue
		}
		if !acc.Active {
			continue
		}

		if acc.IMAPPort == 0 {
			acc.IMAPPort = 993
			if !acc.UseTLS {
				acc.IMAPPort = 143
			}
		}
		if acc.Region == "" {
			acc.Region = "US"
		}

		cfg.Accounts = append(cfg.Accounts, acc)
	}

	if len(cfg.Accounts) == 0 {
		return nil, fmt.Errorf("no active accounts configured in %s", path)
	}

	return cfg, nil
}

// FilterByTags keeps accounts carrying at least one of the given tags.
// An empty tag list keeps every account.
func FilterByTags(accounts []Account, tags []string) []Account {
	if len(tags) == 0 {
		return accounts
	}

	wanted := make(map[string]bool, len(tags))
	for _, t := range tags {
		wanted[strings.ToLower(strings.TrimSpace(t))] = true
	}

	var out []Account
	for _, acc := range accounts {
		for _, t := range acc.Tags {
			if wanted[strings.ToLower(t)] {
				out = append(out, acc)
				break
			}
		}
	}
	return out
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
