package model

import (
	"strings"
	"time"
)

// AnalysisStatus represents the current state of an analysis run.
type AnalysisStatus string

const (
	AnalysisStatusInitiating AnalysisStatus = "initiating"
	AnalysisStatusPolling    AnalysisStatus = "polling"
	AnalysisStatusReady      AnalysisStatus = "ready"
	AnalysisStatusTimedOut   AnalysisStatus = "timed_out"
	AnalysisStatusFailed     AnalysisStatus = "failed"
	AnalysisStatusCancelled  AnalysisStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed from s.
func (s AnalysisStatus) Terminal() bool {
	switch s {
	case AnalysisStatusReady, AnalysisStatusTimedOut, AnalysisStatusFailed, AnalysisStatusCancelled:
		return true
	default:
		return false
	}
}

// AnalysisRequest identifies the company to analyze.
type AnalysisRequest struct {
	CompanyName    string `json:"company_name"`
	CompanyWebsite string `json:"company_website"`
}

// Normalize returns a copy with both fields trimmed.
func (r AnalysisRequest) Normalize() AnalysisRequest {
	return AnalysisRequest{
		CompanyName:    strings.TrimSpace(r.CompanyName),
		CompanyWebsite: strings.TrimSpace(r.CompanyWebsite),
	}
}

// JobHandle identifies an in-flight remote analysis job.
type JobHandle struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

// Valid reports whether both identifiers are present.
func (h JobHandle) Valid() bool {
	return h.ConversationID != "" && h.MessageID != ""
}

// Progress is the caller-visible state of a polling loop.
type Progress struct {
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
	Percent     int    `json:"percent"`
	Message     string `json:"message"`
}

// Analysis is a single analysis run as recorded in the run history.
type Analysis struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Request   AnalysisRequest `json:"request"`
	Handle    *JobHandle      `json:"handle,omitempty"`
	Status    AnalysisStatus  `json:"status"`
	Progress  Progress        `json:"progress"`
	Profile   CompanyProfile  `json:"profile,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorKind string          `json:"error_kind,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AnalysisResult is the terminal outcome written once per analysis.
type AnalysisResult struct {
	Status    AnalysisStatus `json:"status"`
	Profile   CompanyProfile `json:"profile,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorKind string         `json:"error_kind,omitempty"`
}
