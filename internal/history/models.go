package history

import "time"

// SessionRecord is one interview session as persisted for the
// dashboard's history view.
type SessionRecord struct {
	ID            string     `json:"id"`
	CandidateName string     `json:"candidate_name"`
	RoleType      string     `json:"role_type"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	AnalysisCount int        `json:"analysis_count,omitempty"`
}

// AnalysisRecord is one completed cultural fit analysis snapshot.
// Insights, Entities and Keywords are stored as JSON arrays.
type AnalysisRecord struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	RecordedAt time.Time `json:"recorded_at"`
	Score      int       `json:"score"`
	Transcript string    `json:"transcript,omitempty"`
	Insights   string    `json:"insights,omitempty"`
	Entities   string    `json:"entities,omitempty"`
	Keywords   string    `json:"keywords,omitempty"`
}
