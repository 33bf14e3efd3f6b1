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

// Package models defines the data structures shared across the scanner.
package models

import "time"

// Contact is one extracted recruiter/vendor contact record.
// An empty string means the field could not be extracted or failed
// validation. Email-presence is enforced at persistence time, not here.
type Contact struct {
	Name        string    `json:"name,omitempty"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Company     string    `json:"company,omitempty"`
	Website     string    `json:"website,omitempty"`
	LinkedInID  string    `json:"linkedin_id,omitempty"`
	Source      string    `json:"source"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// Classification is the result of scoring one message.
type Classification struct {
	Score       int  `json:"score"`
	IsRecruiter bool `json:"is_recruiter"`
}
