package models

import "time"

// DownloadStatus is the outcome of a download recorded in the ledger
type DownloadStatus string

const (
	DownloadStatusUnset   DownloadStatus = ""        // Zero value = unset/unknown
	DownloadStatusSuccess DownloadStatus = "success" // File written and hashed
	DownloadStatusFailure DownloadStatus = "failure" // Request or write failed
)

// String implements fmt.Stringer for logging
func (s DownloadStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s DownloadStatus) IsValid() bool {
	switch s {
	case DownloadStatusSuccess, DownloadStatusFailure:
		return true
	}
	return false
}

// DownloadEntry is the ledger record for one downloaded URL
type DownloadEntry struct {
	Status      DownloadStatus `json:"status"`
	LocalPath   string         `json:"local_path,omitempty"`
	SHA256      string         `json:"sha256,omitempty"`
	Bytes       int64          `json:"bytes,omitempty"`
	Proxy       string         `json:"proxy,omitempty"` // Endpoint used, empty when direct
	ErrorType   string         `json:"error_type,omitempty"`
	LastAttempt time.Time      `json:"last_attempt"`
}
