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

// Package scan drives the batch pipeline: fetch messages since the
// account watermark, classify, extract contacts, dedup against persisted
// history, persist, advance the watermark. Accounts are independent and
// may run in parallel; batches within one account are strictly
// sequential, and the watermark only advances after a batch's contacts
// are durably saved.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talentsift/extractor/internal/classify"
	"github.com/talentsift/extractor/internal/config"
	"github.com/talentsift/extractor/internal/extract"
	"github.com/talentsift/extractor/internal/mailbox"
	"github.com/talentsift/extractor/internal/models"
	"github.com/talentsift/extractor/internal/rules"
	"github.com/talentsift/extractor/internal/storage"
)

// Store is the persistence the runner writes contacts and watermarks
// through. Implemented by storage.Store.
type Store interface {
	SaveContacts(account string, contacts []models.Contact) error
	LoadWatermark(account string) (string, bool)
	SaveWatermark(account, lastUID string) error
	LoadSeenEmails(account string) (*storage.SeenEmails, error)
}

// Mailbox is the transport the runner pulls messages from.
// Implemented by mailbox.IMAPClient.
type Mailbox interface {
	Connect(ctx context.Context) error
	Fetch(ctx context.Context, sinceUID string, batchSize int) ([]mailbox.Envelope, error)
	Close() error
}

// Dialer builds an unconnected Mailbox for an account.
type Dialer func(account config.Account) Mailbox

// RunnerConfig holds dependencies for the scan runner.
type RunnerConfig struct {
	Store      Store
	Rules      *rules.Set
	Classifier *classify.Classifier

	BatchSize int
	Workers   int

	// SourceLabel overrides the contact source column; when empty each
	// contact records its originating account address.
	SourceLabel string

	// DryRun classifies and extracts but skips persistence and
	// watermark advancement.
	DryRun bool

	Log *slog.Logger
}

// Runner processes accounts.
type Runner struct {
	store      Store
	rules      *rules.Set
	classifier *classify.Classifier

	batchSize   int
	workers     int
	sourceLabel string
	dryRun      bool
	log         *slog.Logger
}

// AccountResult tracks per-account scan progress.
type AccountResult struct {
	Account    string
	Batches    int
	Fetched    int
	Matched    int
	Extracted  int
	Duplicates int
	LastUID    string
}

// Summary summarises a completed scan run.
type Summary struct {
	RunID         string
	Accounts      []AccountResult
	TotalContacts int
	Errors        int
	Elapsed       time.Duration
}

// NewRunner creates a scan runner.
func NewRunner(cfg RunnerConfig) *Runner {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		store:       cfg.Store,
		rules:       cfg.Rules,
		classifier:  cfg.Classifier,
		batchSize:   batchSize,
		workers:     workers,
		sourceLabel: cfg.SourceLabel,
		dryRun:      cfg.DryRun,
		log:         log,
	}
}

// Run processes all accounts with a bounded worker pool. A failing
// account is logged and counted; other accounts are unaffected.
func (r *Runner) Run(ctx context.Context, accounts []config.Account, dial Dialer) Summary {
	start := time.Now()
	runID := uuid.New().String()
	log := r.log.With("run_id", runID)

	log.Info("starting scan run", "accounts", len(accounts), "workers", r.workers, "dry_run", r.dryRun)

	summary := Summary{RunID: runID}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, r.workers)
	)
	for _, account := range accounts {
		wg.Add(1)
		sem <- struct{}{}
		go func(acc config.Account) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := r.ProcessAccount(ctx, acc, dial(acc))

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Error("account processing failed", "account", acc.Address, "error", err)
				summary.Errors++
			}
			summary.Accounts = append(summary.Accounts, res)
			summary.TotalContacts += res.Extracted
		}(account)
	}
	wg.Wait()

	summary.Elapsed = time.Since(start)
	log.Info("scan run complete",
		"accounts", len(accounts),
		"contacts", summary.TotalContacts,
		"errors", summary.Errors,
		"elapsed", summary.Elapsed.Round(time.Millisecond),
	)
	return summary
}

// ProcessAccount scans one account to completion: sequential batches
// from the stored watermark until a short batch signals the end of the
// mailbox. Partial progress is reflected in the returned result even on
// error.
func (r *Runner) ProcessAccount(ctx context.Context, account config.Account, mb Mailbox) (AccountResult, error) {
	res := AccountResult{Account: account.Address}
	log := r.log.With("account", account.Address)

	extractor := extract.New(r.rules, account.Region, log)
	extraBlacklist := rules.CompileAnchored(account.ExtraBlacklist, log)

	if err := mb.Connect(ctx); err != nil {
		return res, fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if err := mb.Close(); err != nil {
			log.Warn("failed to close mailbox", "error", err)
		}
	}()

	seen, err := r.store.LoadSeenEmails(account.Address)
	if err != nil {
		return res, fmt.Errorf("load seen emails: %w", err)
	}

	sinceUID, ok := r.store.LoadWatermark(account.Address)
	if ok {
		log.Info("resuming from watermark", "last_uid", sinceUID)
	}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		batch, err := mb.Fetch(ctx, sinceUID, r.batchSize)
		if err != nil {
			return res, fmt.Errorf("fetch batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		res.Batches++
		res.Fetched += len(batch)

		contacts := r.collectContacts(batch, account, extractor, extraBlacklist, &res)
		unique := r.dedup(contacts, seen, &res)

		if !r.dryRun && len(unique) > 0 {
			if err := r.store.SaveContacts(account.Address, unique); err != nil {
				// Watermark stays put so this batch is retried next run
				return res, fmt.Errorf("persist contacts: %w", err)
			}
		}
		for _, c := range unique {
			if c.Email != "" {
				seen.Mark(c.Email)
				res.Extracted++
			}
		}

		// Batches are ascending by UID, so the last entry is the max
		maxUID := batch[len(batch)-1].UID
		if !r.dryRun {
			if err := r.store.SaveWatermark(account.Address, maxUID); err != nil {
				return res, fmt.Errorf("save watermark: %w", err)
			}
		}
		res.LastUID = maxUID
		sinceUID = maxUID

		log.Info("batch processed",
			"batch", res.Batches,
			"fetched", len(batch),
			"matched", res.Matched,
			"extracted", res.Extracted,
			"last_uid", maxUID,
		)

		// A short batch means the mailbox is exhausted
		if len(batch) < r.batchSize {
			break
		}
	}

	log.Info("account scan complete",
		"batches", res.Batches,
		"fetched", res.Fetched,
		"matched", res.Matched,
		"extracted", res.Extracted,
		"duplicates", res.Duplicates,
	)
	return res, nil
}

// collectContacts classifies every message in the batch and assembles a
// contact for each recruiter match.
func (r *Runner) collectContacts(
	batch []mailbox.Envelope,
	account config.Account,
	extractor *extract.Extractor,
	extraBlacklist []*regexp.Regexp,
	res *AccountResult,
) []models.Contact {
	source := r.sourceLabel
	if source == "" {
		source = account.Address
	}

	var contacts []models.Contact
	for _, env := range batch {
		cls := r.classifier.Classify(env.Msg, extraBlacklist)
		if !cls.IsRecruiter {
			continue
		}
		res.Matched++
		contacts = append(contacts, extractor.Assemble(env.Msg, source))
	}
	return contacts
}

// dedup drops contacts whose email was persisted in an earlier run or
// already collected in this one. Contacts without an email pass through;
// persistence drops them.
func (r *Runner) dedup(contacts []models.Contact, seen *storage.SeenEmails, res *AccountResult) []models.Contact {
	batchSeen := map[string]bool{}
	unique := contacts[:0]
	for _, c := range contacts {
		key := strings.ToLower(strings.TrimSpace(c.Email))
		if key != "" {
			if seen.Seen(key) || batchSeen[key] {
				res.Duplicates++
				continue
			}
			batchSeen[key] = true
		}
		unique = append(unique, c)
	}
	return unique
}
