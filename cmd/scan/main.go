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

// Talentsift Extractor: Mailbox Scan Command
//
// Incrementally scans configured IMAP accounts for recruiter/vendor
// outreach, extracts contact records and appends them to per-account
// CSV tables, resuming from each account's stored UID watermark.
//
// Usage:
//
//	go run ./cmd/scan/ [--tags job_search] [--batch-size 100] [--dry-run]
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/talentsift/extractor/internal/classify"
	"github.com/talentsift/extractor/internal/config"
	"github.com/talentsift/extractor/internal/mailbox"
	"github.com/talentsift/extractor/internal/rules"
	"github.com/talentsift/extractor/internal/scan"
	"github.com/talentsift/extractor/internal/storage"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// --- CLI Flags ---
	configFlag := flag.String("config", "", "Path to accounts.yaml (default $CONFIG_PATH or config/accounts.yaml)")
	rulesFlag := flag.String("rules", "", "Path to rules.yaml (default $RULES_PATH or config/rules.yaml)")
	dataDirFlag := flag.String("data-dir", "", "Data directory for contact tables and the watermark store")
	tagsFlag := flag.String("tags", "", "Comma-separated account tags to scan (empty = all active accounts)")
	batchFlag := flag.Int("batch-size", 0, "Messages fetched per batch")
	workersFlag := flag.Int("workers", 0, "Accounts processed in parallel")
	sourceFlag := flag.String("source", "", "Fixed source label for extracted contacts (default: the account address)")
	dryRun := flag.Bool("dry-run", false, "Classify and extract but skip persistence and watermark updates")
	flag.Parse()

	// --- Load Configuration ---
	cfg, err := config.Load(*configFlag)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *rulesFlag != "" {
		cfg.RulesPath = *rulesFlag
	}
	if *dataDirFlag != "" {
		cfg.DataDir = *dataDirFlag
	}
	if *batchFlag > 0 {
		cfg.BatchSize = *batchFlag
	}
	if *workersFlag > 0 {
		cfg.Workers = *workersFlag
	}
	if *sourceFlag != "" {
		cfg.SourceLabel = *sourceFlag
	}

	accounts := cfg.Accounts
	if *tagsFlag != "" {
		accounts = config.FilterByTags(accounts, strings.Split(*tagsFlag, ","))
	}
	if len(accounts) == 0 {
		slog.Error("no active accounts match the requested tags", "tags", *tagsFlag)
		os.Exit(1)
	}

	// Rule load failures degrade to an empty set rather than aborting
	ruleSet := rules.Load(cfg.RulesPath, logger)

	store, err := storage.New(cfg.DataDir, logger)
	if err != nil {
		slog.Error("failed to initialise storage", "error", err)
		os.Exit(1)
	}

	classifier := classify.New(ruleSet, classify.DefaultConfig(), logger)

	runner := scan.NewRunner(scan.RunnerConfig{
		Store:       store,
		Rules:       ruleSet,
		Classifier:  classifier,
		BatchSize:   cfg.BatchSize,
		Workers:     cfg.Workers,
		SourceLabel: cfg.SourceLabel,
		DryRun:      *dryRun,
		Log:         logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary := runner.Run(ctx, accounts, func(acc config.Account) scan.Mailbox {
		return mailbox.NewIMAPClient(acc, logger)
	})

	if summary.Errors > 0 {
		os.Exit(1)
	}
}
