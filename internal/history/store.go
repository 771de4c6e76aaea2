// Package history persists session and analysis snapshots to
// PostgreSQL for the dashboard's history view. It is optional
// observability: the live pipeline runs entirely off the in-memory
// session store and never blocks on this package.
package history

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const maxSessions = 100

// Store persists analysis history to PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to the history database at connStr and applies
// pending migrations.
func Open(connStr string) (*Store, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("history open: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history ping: %w", err)
	}
	if err = migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("history migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`)
	if err != nil {
		return err
	}

	var current int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), -1) FROM schema_version`)
	if err = row.Scan(&current); err != nil {
		return err
	}

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	for i := current + 1; i < len(entries); i++ {
		data, readErr := migrationFS.ReadFile("migrations/" + entries[i].Name())
		if readErr != nil {
			return fmt.Errorf("read migration %d: %w", i, readErr)
		}
		if _, execErr := db.Exec(string(data)); execErr != nil {
			return fmt.Errorf("migration %d: %w", i, execErr)
		}
		if _, execErr := db.Exec(`INSERT INTO schema_version (version) VALUES ($1)`, i); execErr != nil {
			return fmt.Errorf("migration %d record: %w", i, execErr)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession inserts a new session row and prunes the oldest rows
// beyond the retention cap.
func (s *Store) CreateSession(id, candidateName, roleType string) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, candidate_name, role_type, started_at) VALUES ($1, $2, $3, $4)`,
		id, candidateName, roleType, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`DELETE FROM sessions WHERE id NOT IN (SELECT id FROM sessions ORDER BY started_at DESC LIMIT $1)`,
		maxSessions,
	)
	return err
}

// EndSession sets the ended_at timestamp.
func (s *Store) EndSession(id string) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET ended_at = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	return err
}

// RecordAnalysis inserts one analysis snapshot.
func (s *Store) RecordAnalysis(rec AnalysisRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO analyses (id, session_id, recorded_at, score, transcript, insights, entities, keywords)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.SessionID, rec.RecordedAt.UTC(), rec.Score,
		rec.Transcript, rec.Insights, rec.Entities, rec.Keywords,
	)
	return err
}

// ListSessions returns sessions newest first with analysis counts,
// plus the total row count for paging.
func (s *Store) ListSessions(limit, offset int) ([]SessionRecord, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(`
		SELECT s.id, s.candidate_name, s.role_type, s.started_at, s.ended_at, COUNT(a.id) as analysis_count
		FROM sessions s
		LEFT JOIN analyses a ON a.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sessions []SessionRecord
	for rows.Next() {
		var sess SessionRecord
		var endedAt sql.NullTime
		if err = rows.Scan(&sess.ID, &sess.CandidateName, &sess.RoleType, &sess.StartedAt, &endedAt, &sess.AnalysisCount); err != nil {
			return nil, 0, err
		}
		if endedAt.Valid {
			sess.EndedAt = &endedAt.Time
		}
		sessions = append(sessions, sess)
	}
	return sessions, total, rows.Err()
}

// ListAnalyses returns a session's analysis snapshots oldest first.
func (s *Store) ListAnalyses(sessionID string) ([]AnalysisRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, recorded_at, score, transcript, insights, entities, keywords
		 FROM analyses WHERE session_id = $1 ORDER BY recorded_at ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []AnalysisRecord
	for rows.Next() {
		var rec AnalysisRecord
		if err = rows.Scan(&rec.ID, &rec.SessionID, &rec.RecordedAt, &rec.Score, &rec.Transcript, &rec.Insights, &rec.Entities, &rec.Keywords); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
