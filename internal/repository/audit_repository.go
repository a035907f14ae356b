package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/testerhub/code-pool-reservation/internal/model"
)

// AuditRepo appends to and queries the `logs` table.  The table is
// append-only: there is no update or delete method on purpose, and
// none may be added.  Inserts happen inside the same transaction as
// the state transition they record so that a code never changes state
// without a matching entry.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo returns a new AuditRepo bound to the given database.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// InsertTx appends one audit entry within the caller's transaction.
// LoggedAt is server-assigned when zero.
func (r *AuditRepo) InsertTx(ctx context.Context, tx *sql.Tx, e model.AuditLogEntry) error {
	loggedAt := e.LoggedAt
	if loggedAt.IsZero() {
		loggedAt = time.Now().UTC()
	}
	const q = `INSERT INTO logs
			   (code, user_id, user_name, contact_email, tester_name, action, region_name, country_name, note, logged_at)
			   VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		e.Code, e.UserID, e.UserName, e.ContactEmail, e.TesterName,
		e.Action, e.RegionName, e.CountryName, e.Note, loggedAt)
	return err
}

// LogFilter narrows a log query.  Zero values mean "no restriction";
// missing date bounds are widened to the oldest/newest entries.
type LogFilter struct {
	Start    *time.Time
	End      *time.Time
	Code     string
	UserName string
	Offset   int
	Limit    int
}

// DefaultLogPageSize is used when a filter does not specify a limit.
const DefaultLogPageSize = 20

// DateBounds returns the oldest and newest logged_at timestamps, or
// nils when the table is empty.
func (r *AuditRepo) DateBounds(ctx context.Context) (*time.Time, *time.Time, error) {
	var minAt, maxAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT MIN(logged_at), MAX(logged_at) FROM logs`).Scan(&minAt, &maxAt)
	if err != nil {
		return nil, nil, err
	}
	var lo, hi *time.Time
	if minAt.Valid {
		t := minAt.Time
		lo = &t
	}
	if maxAt.Valid {
		t := maxAt.Time
		hi = &t
	}
	return lo, hi, nil
}

// ListFiltered returns the total match count and one page of entries
// ordered newest-first.
func (r *AuditRepo) ListFiltered(ctx context.Context, f LogFilter) (int64, []model.AuditLogEntry, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultLogPageSize
	}
	if f.Start == nil || f.End == nil {
		lo, hi, err := r.DateBounds(ctx)
		if err != nil {
			return 0, nil, err
		}
		if f.Start == nil {
			f.Start = lo
		}
		if f.End == nil {
			f.End = hi
		}
	}

	var conds []string
	var args []interface{}
	switch {
	case f.Start != nil && f.End != nil:
		conds = append(conds, "logged_at BETWEEN ? AND ?")
		args = append(args, *f.Start, *f.End)
	case f.Start != nil:
		conds = append(conds, "logged_at >= ?")
		args = append(args, *f.Start)
	case f.End != nil:
		conds = append(conds, "logged_at <= ?")
		args = append(args, *f.End)
	}
	if f.Code != "" {
		conds = append(conds, "code = ?")
		args = append(args, f.Code)
	}
	if f.UserName != "" {
		conds = append(conds, "user_name = ?")
		args = append(args, f.UserName)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM logs`+where, args...).Scan(&total); err != nil {
		return 0, nil, err
	}

	q := `SELECT id, code, user_id, user_name, contact_email, tester_name, action,
				 region_name, country_name, note, logged_at
		  FROM logs` + where + `
		  ORDER BY logged_at DESC, id DESC
		  LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()
	entries := make([]model.AuditLogEntry, 0, f.Limit)
	for rows.Next() {
		var (
			e           model.AuditLogEntry
			userID      sql.NullInt64
			userName    sql.NullString
			email       sql.NullString
			testerName  sql.NullString
			regionName  sql.NullString
			countryName sql.NullString
			note        sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Code, &userID, &userName, &email, &testerName,
			&e.Action, &regionName, &countryName, &note, &e.LoggedAt); err != nil {
			return 0, nil, err
		}
		if userID.Valid {
			v := uint64(userID.Int64)
			e.UserID = &v
		}
		e.UserName = userName.String
		e.ContactEmail = email.String
		if testerName.Valid {
			v := testerName.String
			e.TesterName = &v
		}
		if regionName.Valid {
			v := regionName.String
			e.RegionName = &v
		}
		if countryName.Valid {
			v := countryName.String
			e.CountryName = &v
		}
		if note.Valid {
			v := note.String
			e.Note = &v
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}
	return total, entries, nil
}

// CountByCodeAndAction reports how many entries exist for one code and
// action.  Used by tests and the admin dashboard.
func (r *AuditRepo) CountByCodeAndAction(ctx context.Context, code string, action model.AuditAction) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM logs WHERE code = ? AND action = ?`, code, action).Scan(&n)
	return n, err
}
