package storage

// sqlite.go — the trade journal.
//
// Two tables, both append-mostly:
//   - `positions`: one row per settled position (UPSERT by local ID;
//     a gale cascade settles once, so each logical position lands as a
//     single row with its final gale count and stake).
//   - `dailies`: one row per trading day (UPSERT by date), written
//     when the circuit breaker halts or the process exits.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmoraes/galebot/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS positions (
    id           TEXT PRIMARY KEY,
    broker_id    TEXT    NOT NULL,
    pair         TEXT    NOT NULL,
    direction    TEXT    NOT NULL,
    gales        INTEGER NOT NULL DEFAULT 0,
    amount       REAL    NOT NULL,
    opened_at    DATETIME NOT NULL,
    expires_in   INTEGER NOT NULL,
    cycle_funded INTEGER NOT NULL DEFAULT 0,
    outcome      TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS dailies (
    day           TEXT PRIMARY KEY,
    start_balance REAL    NOT NULL,
    end_balance   REAL    NOT NULL,
    wins          INTEGER NOT NULL DEFAULT 0,
    losses        INTEGER NOT NULL DEFAULT 0,
    unknown       INTEGER NOT NULL DEFAULT 0,
    gales         INTEGER NOT NULL DEFAULT 0,
    soros_runs    INTEGER NOT NULL DEFAULT 0,
    stopped       TEXT    NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_pos_opened ON positions(opened_at DESC);
CREATE INDEX IF NOT EXISTS idx_pos_pair   ON positions(pair);
`

// SQLiteJournal implements ports.Journal using SQLite (pure Go, no CGo).
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal opens (or creates) the database at the given path
// and applies the schema.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %q: %w", path, err)
	}
	j := &SQLiteJournal{db: db}
	if err := j.ApplySchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// ApplySchema creates the journal tables if missing.
func (j *SQLiteJournal) ApplySchema(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("storage: apply schema: %w", err)
	}
	return nil
}

// SavePosition upserts one settled position.
func (j *SQLiteJournal) SavePosition(ctx context.Context, pos domain.Position) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO positions (id, broker_id, pair, direction, gales, amount, opened_at, expires_in, cycle_funded, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			broker_id = excluded.broker_id,
			gales     = excluded.gales,
			amount    = excluded.amount,
			opened_at = excluded.opened_at,
			outcome   = excluded.outcome`,
		pos.ID, pos.BrokerID, pos.Pair, string(pos.Direction), pos.Gales, pos.Amount,
		pos.OpenedAt.UTC(), pos.ExpiresIn, boolToInt(pos.CycleFunded), string(pos.Outcome),
	)
	if err != nil {
		return fmt.Errorf("storage: save position %s: %w", pos.ID, err)
	}
	return nil
}

// GetPositions returns settled positions opened in [from, to], oldest
// first.
func (j *SQLiteJournal) GetPositions(ctx context.Context, from, to time.Time) ([]domain.Position, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, broker_id, pair, direction, gales, amount, opened_at, expires_in, cycle_funded, outcome
		FROM positions
		WHERE opened_at BETWEEN ? AND ?
		ORDER BY opened_at ASC`,
		from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: query positions: %w", err)
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		var p domain.Position
		var dir, outcome string
		var cycleFunded int
		if err := rows.Scan(&p.ID, &p.BrokerID, &p.Pair, &dir, &p.Gales, &p.Amount,
			&p.OpenedAt, &p.ExpiresIn, &cycleFunded, &outcome); err != nil {
			return nil, fmt.Errorf("storage: scan position: %w", err)
		}
		p.Direction = domain.Direction(dir)
		p.Outcome = domain.Outcome(outcome)
		p.CycleFunded = cycleFunded != 0
		p.Closed = true
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveDaily upserts the summary for one trading day.
func (j *SQLiteJournal) SaveDaily(ctx context.Context, d domain.DailySummary) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO dailies (day, start_balance, end_balance, wins, losses, unknown, gales, soros_runs, stopped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(day) DO UPDATE SET
			end_balance = excluded.end_balance,
			wins        = excluded.wins,
			losses      = excluded.losses,
			unknown     = excluded.unknown,
			gales       = excluded.gales,
			soros_runs  = excluded.soros_runs,
			stopped     = excluded.stopped`,
		d.Date.Format("2006-01-02"), d.StartBalance, d.EndBalance,
		d.Wins, d.Losses, d.Unknown, d.Gales, d.SorosRuns, d.Stopped,
	)
	if err != nil {
		return fmt.Errorf("storage: save daily: %w", err)
	}
	return nil
}

// GetDailies returns every daily summary, oldest first.
func (j *SQLiteJournal) GetDailies(ctx context.Context) ([]domain.DailySummary, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT day, start_balance, end_balance, wins, losses, unknown, gales, soros_runs, stopped
		FROM dailies ORDER BY day ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage: query dailies: %w", err)
	}
	defer rows.Close()

	var out []domain.DailySummary
	for rows.Next() {
		var d domain.DailySummary
		var day string
		if err := rows.Scan(&day, &d.StartBalance, &d.EndBalance, &d.Wins, &d.Losses,
			&d.Unknown, &d.Gales, &d.SorosRuns, &d.Stopped); err != nil {
			return nil, fmt.Errorf("storage: scan daily: %w", err)
		}
		d.Date, _ = time.Parse("2006-01-02", day)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Close shuts the database down.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
