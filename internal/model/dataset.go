package model

import "time"

// Dataset is the metadata record for one uploaded CSV artifact.
//
// FilePath is the canonical absolute path of the stored file — already
// verified to live inside the owner's sandbox directory by the storage layer.
// OriginalName is what the uploader called the file; it is display-only and
// never used to touch the filesystem.
//
// Columns is the header-derived schema, stored in SQLite as a JSON document
// (a TEXT column). The repository encodes/decodes it so the rest of the app
// only ever sees []string.
type Dataset struct {
	ID           string    `json:"id"`
	UserID       string    `json:"-"`
	FilePath     string    `json:"-"`
	OriginalName string    `json:"originalName"`
	Columns      []string  `json:"columns"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ChatEntry is one question/answer exchange with the analysis service.
// Rows are append-only: written once after a successful round-trip, never
// mutated. Answer and Code may be empty when the service returned a partial
// result.
//
// DatasetName is populated only on reads, joined from the owning dataset's
// OriginalName — it has no column of its own.
type ChatEntry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"-"`
	DatasetID   string    `json:"datasetId"`
	Question    string    `json:"question"`
	Answer      string    `json:"answer"`
	Code        string    `json:"code,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	DatasetName string    `json:"datasetName,omitempty"`
}
