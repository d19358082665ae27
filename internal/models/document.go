package models

import "time"

// Job statuses written to Firestore.
const (
	StatusDownloading = "DOWNLOADING"
	StatusMerging     = "MERGING"
	StatusUploading   = "UPLOADING"
	StatusDone        = "DONE"
	StatusFailed      = "FAILED"
)

// MergeJob is the Firestore record of one cloud merge run. MarkerKey identifies
// the ready-marker generation that started it and is used to drop redelivered events.
type MergeJob struct {
	MarkerKey     string    `firestore:"markerKey,omitempty"`
	Bucket        string    `firestore:"bucket,omitempty"`
	Prefix        string    `firestore:"prefix"`
	Status        string    `firestore:"status,omitempty"`
	ErrorDetails  string    `firestore:"errorDetails,omitempty"`
	DocumentCount int       `firestore:"documentCount,omitempty"`
	PageCount     int       `firestore:"pageCount,omitempty"`
	SkippedFiles  []string  `firestore:"skippedFiles,omitempty"`
	OutputGCSUri  string    `firestore:"outputGcsUri,omitempty"`
	CreatedAt     time.Time `firestore:"createdAt,omitempty"`
	CompletedAt   time.Time `firestore:"completedAt,omitempty"`
}
