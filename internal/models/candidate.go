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

package models

import "time"

// Source records how a candidate entered the system.
type Source string

const (
	SourceEmailImport     Source = "email_import"
	SourceEmailAttachment Source = "email_attachment"
	SourceManualUpload    Source = "manual_upload"
	SourceApplication     Source = "application"
)

// Collection names a persisted record collection.
type Collection string

const (
	CollectionCandidates   Collection = "candidates"
	CollectionApplications Collection = "applications"
)

// ParsedCandidate is the normalised record produced from an email, ready to
// be reviewed and saved. ResumeFileURL is nil when the original file could
// not be stored.
type ParsedCandidate struct {
	Name             string   `json:"name"`
	Email            string   `json:"email"`
	Phone            string   `json:"phone"`
	Skills           []string `json:"skills"`
	Experience       string   `json:"experience"`
	Education        string   `json:"education"`
	ResumeText       string   `json:"resumeText"`
	LinkedIn         string   `json:"linkedIn"`
	Location         string   `json:"location"`
	Languages        []string `json:"languages"`
	JobTitle         string   `json:"jobTitle"`
	ResumeFileURL    *string  `json:"resumeFileURL"`
	OriginalFilename string   `json:"originalFilename"`
	FileType         string   `json:"fileType"`
	FileSize         int64    `json:"fileSize"`
	Source           Source   `json:"source"`
	CreatedAt        string   `json:"createdAt"`
	UpdatedAt        string   `json:"updatedAt"`
}

// Document is a file attached to a candidate record.
type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Type       string    `json:"type"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// HistoryNote is one entry in a candidate's activity history.
type HistoryNote struct {
	At   time.Time `json:"at"`
	Note string    `json:"note"`
}

// Candidate is a persisted candidate record.
type Candidate struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Email           string        `json:"email"`
	Phone           string        `json:"phone"`
	Skills          []string      `json:"skills"`
	Experience      string        `json:"experience"`
	Education       string        `json:"education"`
	ResumeText      string        `json:"resumeText"`
	LinkedIn        string        `json:"linkedIn"`
	Location        string        `json:"location"`
	Languages       []string      `json:"languages"`
	JobTitle        string        `json:"jobTitle"`
	Source          Source        `json:"source"`
	SourceMessageID string        `json:"sourceMessageId,omitempty"`
	ApplicationID   string        `json:"applicationId,omitempty"`
	Documents       []Document    `json:"documents"`
	History         []HistoryNote `json:"history"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// Application status values.
const (
	ApplicationPending   = "pending"
	ApplicationApproved  = "approved"
	ApplicationRejected  = "rejected"
	ApplicationConverted = "converted"
)

// Application is a persisted job application, owned by other parts of the
// app. This service only reads it and marks it converted.
type Application struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	Skills         []string   `json:"skills"`
	Experience     string     `json:"experience"`
	Education      string     `json:"education"`
	Location       string     `json:"location"`
	JobTitle       string     `json:"jobTitle"`
	ResumeURL      string     `json:"resumeUrl"`
	ResumeFilename string     `json:"resumeFilename"`
	Status         string     `json:"status"`
	CandidateID    string     `json:"candidateId,omitempty"`
	ConvertedAt    *time.Time `json:"convertedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}
