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

// Package storage persists extracted contacts to per-account CSV tables
// and tracks scan progress in a JSON watermark store. Both formats are
// stable on-disk contracts: the CSV column order is fixed and the
// watermark file is a JSON object keyed by account address.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/talentsift/extractor/internal/models"
)

const (
	contactsDirName   = "extracted_contacts"
	watermarkFileName = "last_run.json"
)

// csvColumns is the fixed contact table column order.
var csvColumns = []string{
	"name", "email", "phone", "company",
	"website", "source", "linkedin_url", "extracted_date",
}

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Store owns the data directory.
type Store struct {
	dataDir string
	log     *slog.Logger

	// mu serialises read-modify-write cycles on the shared watermark
	// file; contact tables are per-account and need no locking.
	mu sync.Mutex
}

// New creates a store rooted at dataDir, creating the directory if needed.
func New(dataDir string, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dataDir, err)
	}
	return &Store{dataDir: dataDir, log: log}, nil
}

func (s *Store) contactsPath(account string) string {
	name := strings.ReplaceAll(account, "@", "_at_") + ".csv"
	return filepath.Join(s.dataDir, contactsDirName, name)
}

// SaveContacts appends contacts to the account's CSV table, writing the
// header when the file is new. Contacts without a valid email are
// dropped; any other invalid field is blanked, keeping the row.
func (s *Store) SaveContacts(account string, contacts []models.Contact) error {
	rows := make([][]string, 0, len(contacts))
	for _, c := range contacts {
		row, ok := contactRow(c)
		if !ok {
			s.log.Debug("dropping contact without valid email", "account", account, "name", c.Name)
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil
	}

	path := s.contactsPath(account)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create contacts dir: %w", err)
	}

	_, statErr := os.Stat(path)
	isNew := errors.Is(statErr, fs.ErrNotExist)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open contacts file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(csvColumns); err != nil {
			return fmt.Errorf("write CSV header: %w", err)
		}
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write contact row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush contacts file: %w", err)
	}

	s.log.Info("saved contacts", "account", account, "count", len(rows))
	return nil
}

// contactRow validates a contact into a CSV row. The second return is
// false when the contact has no valid email and must be dropped.
func contactRow(c models.Contact) ([]string, bool) {
	email := strings.ToLower(strings.TrimSpace(c.Email))
	if !emailRe.MatchString(email) {
		return nil, false
	}

	phone := validPhone(c.Phone)
	if phone != "" {
		// Leading marker defeats spreadsheet auto-numeric reformatting
		phone = "'" + phone
	}

	return []string{
		strings.TrimSpace(c.Name),
		email,
		phone,
		strings.TrimSpace(c.Company),
		validWebsite(c.Website),
		c.Source,
		strings.TrimSpace(c.LinkedInID),
		c.ExtractedAt.UTC().Format(time.RFC3339),
	}, true
}

// validPhone blanks phone values that lost their digit shape.
func validPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	digits := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < 10 || digits > 15 {
		return ""
	}
	return phone
}

// validWebsite blanks values that don't parse as an http(s) URL.
func validWebsite(website string) string {
	website = strings.TrimSpace(website)
	if website == "" {
		return ""
	}
	u, err := url.Parse(website)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return website
}

// watermarkEntry records per-account scan progress.
type watermarkEntry struct {
	LastUID string `json:"last_uid"`
	LastRun string `json:"last_run"`
}

func (s *Store) watermarkPath() string {
	return filepath.Join(s.dataDir, watermarkFileName)
}

func (s *Store) readWatermarks() map[string]watermarkEntry {
	marks := map[string]watermarkEntry{}
	data, err := os.ReadFile(s.watermarkPath())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Error("failed to read watermark store", "error", err)
		}
		return marks
	}
	if err := json.Unmarshal(data, &marks); err != nil {
		s.log.Error("failed to parse watermark store", "error", err)
		return map[string]watermarkEntry{}
	}
	return marks
}

// LoadWatermark returns the last processed UID for the account, with
// false when the account has never completed a batch.
func (s *Store) LoadWatermark(account string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.readWatermarks()[account]
	if !ok || entry.LastUID == "" {
		return "", false
	}
	return entry.LastUID, true
}

// SaveWatermark durably records the last processed UID for the account.
// The file is replaced atomically so a crash can't corrupt other
// accounts' entries.
func (s *Store) SaveWatermark(account, lastUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	marks := s.readWatermarks()
	marks[account] = watermarkEntry{
		LastUID: lastUID,
		LastRun: time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.MarshalIndent(marks, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal watermarks: %w", err)
	}

	tmp := s.watermarkPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write watermark temp file: %w", err)
	}
	if err := os.Rename(tmp, s.watermarkPath()); err != nil {
		return fmt.Errorf("replace watermark store: %w", err)
	}
	return nil
}

// SeenEmails tracks which normalized email addresses have already been
// persisted for one account. It is owned by a single account worker and
// not safe for concurrent use.
type SeenEmails struct {
	set map[string]bool
}

// NewSeenEmails returns an empty seen-set.
func NewSeenEmails() *SeenEmails {
	return &SeenEmails{set: map[string]bool{}}
}

// Seen reports whether the email was already persisted or marked.
func (se *SeenEmails) Seen(email string) bool {
	return se.set[normalizeEmail(email)]
}

// Mark records the email as persisted.
func (se *SeenEmails) Mark(email string) {
	se.set[normalizeEmail(email)] = true
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// LoadSeenEmails rebuilds the account's seen-set from its persisted
// contact table, making persistence idempotent across runs.
func (s *Store) LoadSeenEmails(account string) (*SeenEmails, error) {
	se := NewSeenEmails()

	f, err := os.Open(s.contactsPath(account))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return se, nil
		}
		return nil, fmt.Errorf("open contacts file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read contacts file: %w", err)
	}

	emailCol := 1
	for i, rec := range records {
		if i == 0 {
			// Resolve the email column from the header, tolerating
			// older files with different layouts
			for col, name := range rec {
				if name == "email" {
					emailCol = col
					break
				}
			}
			continue
		}
		if emailCol < len(rec) && rec[emailCol] != "" {
			se.Mark(rec[emailCol])
		}
	}

	return se, nil
}
