package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Reader runs read-only queries against a run index.
type Reader struct {
	db *sql.DB
}

func OpenReader(path string) (*Reader, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

type RunSummary struct {
	RunID     string `json:"run_id"`
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at,omitempty"`
	FinalTick uint64 `json:"final_tick"`
	Seed      int64  `json:"seed"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Agents    int    `json:"agents"`
	Markers   string `json:"markers"`

	TicksIndexed uint64 `json:"ticks_indexed"`
	MovesIndexed uint64 `json:"moves_indexed"`
}

type AgentStat struct {
	AgentID      int    `json:"agent_id"`
	Moves        uint64 `json:"moves"`
	CellsVisited uint64 `json:"cells_visited"`
	BoundsHits   uint64 `json:"bounds_hits"`
	LastX        int    `json:"last_x"`
	LastY        int    `json:"last_y"`
}

func (r *Reader) Summary(ctx context.Context) (RunSummary, error) {
	var (
		s         RunSummary
		endedAt   sql.NullString
		finalTick sql.NullInt64
	)
	row := r.db.QueryRowContext(ctx, `SELECT run_id, started_at, ended_at, final_tick, seed, width, height, agents, markers FROM runs ORDER BY started_at DESC LIMIT 1`)
	if err := row.Scan(&s.RunID, &s.StartedAt, &endedAt, &finalTick, &s.Seed, &s.Width, &s.Height, &s.Agents, &s.Markers); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunSummary{}, fmt.Errorf("index has no run row")
		}
		return RunSummary{}, err
	}
	s.EndedAt = endedAt.String
	if finalTick.Valid {
		s.FinalTick = uint64(finalTick.Int64)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ticks`).Scan(&s.TicksIndexed); err != nil {
		return RunSummary{}, err
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM moves`).Scan(&s.MovesIndexed); err != nil {
		return RunSummary{}, err
	}
	return s, nil
}

// AgentStats aggregates the moves table per agent, ordered by id.
func (r *Reader) AgentStats(ctx context.Context) ([]AgentStat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT agent_id,
		       COUNT(*),
		       COUNT(DISTINCT x || ',' || y),
		       SUM(clamped)
		FROM moves
		GROUP BY agent_id
		ORDER BY agent_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AgentStat
	for rows.Next() {
		var st AgentStat
		if err := rows.Scan(&st.AgentID, &st.Moves, &st.CellsVisited, &st.BoundsHits); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		err := r.db.QueryRowContext(ctx,
			`SELECT x, y FROM moves WHERE agent_id=? ORDER BY tick DESC, seq DESC LIMIT 1`, out[i].AgentID,
		).Scan(&out[i].LastX, &out[i].LastY)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
