package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const createResolutions = `
CREATE TABLE IF NOT EXISTS style_resolutions (
	recorded_at  TIMESTAMP NOT NULL,
	community_id VARCHAR NOT NULL,
	state        VARCHAR NOT NULL,
	external     BOOLEAN NOT NULL,
	style_name   VARCHAR NOT NULL,
	reason       VARCHAR NOT NULL
)`

// Resolution is one terminal style state reached by a community.
type Resolution struct {
	At          time.Time `json:"at" doc:"When the state was reached"`
	CommunityID string    `json:"communityId" doc:"Community identifier"`
	State       string    `json:"state" doc:"internal, external or fallback"`
	External    bool      `json:"external" doc:"Whether the style came from the commercial provider"`
	StyleName   string    `json:"styleName,omitempty" doc:"Name field of the style document"`
	Reason      string    `json:"reason,omitempty" doc:"Why the fallback style was used"`
}

// Recorder appends resolutions to the style_resolutions table.
type Recorder struct {
	db *sql.DB
}

// NewRecorder creates the table if needed.
func NewRecorder(ctx context.Context, db *sql.DB) (*Recorder, error) {
	if _, err := db.ExecContext(ctx, createResolutions); err != nil {
		return nil, fmt.Errorf("create style_resolutions: %w", err)
	}
	return &Recorder{db: db}, nil
}

// Record stores res. A zero At is replaced with the current time.
func (r *Recorder) Record(ctx context.Context, res Resolution) error {
	if res.At.IsZero() {
		res.At = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO style_resolutions VALUES (?, ?, ?, ?, ?, ?)`,
		res.At.UTC(), res.CommunityID, res.State, res.External, res.StyleName, res.Reason)
	if err != nil {
		return fmt.Errorf("record resolution for %s: %w", res.CommunityID, err)
	}
	return nil
}

// Recent returns up to limit resolutions of a community, newest first.
func (r *Recorder) Recent(ctx context.Context, communityID string, limit int) ([]Resolution, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT recorded_at, community_id, state, external, style_name, reason
		FROM style_resolutions
		WHERE community_id = ?
		ORDER BY recorded_at DESC
		LIMIT ?`, communityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query resolutions: %w", err)
	}
	defer rows.Close()

	result := []Resolution{}
	for rows.Next() {
		var res Resolution
		if err := rows.Scan(&res.At, &res.CommunityID, &res.State, &res.External, &res.StyleName, &res.Reason); err != nil {
			return nil, fmt.Errorf("scan resolution: %w", err)
		}
		result = append(result, res)
	}
	return result, rows.Err()
}
