package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/testerhub/code-pool-reservation/internal/model"
)

// CodeRepo provides row-level access to the `codes` table and its
// country associations.  All state transitions (claim, release,
// block, delete) are exposed as Tx methods so the allocator service
// can combine them with an audit insert in one atomic transaction.
// Correctness under concurrent claims is delegated entirely to the
// store's row locks plus the skip-locked candidate search; no
// in-process mutex guards code rows.
type CodeRepo struct {
	db *sql.DB
}

// NewCodeRepo returns a new CodeRepo bound to the given database.
func NewCodeRepo(db *sql.DB) *CodeRepo { return &CodeRepo{db: db} }

// DB exposes the underlying pool so callers can begin transactions.
func (r *CodeRepo) DB() *sql.DB { return r.db }

const codeColumns = `code, status, code_type, user_id, tester_name, claimed_at, released_at, claim_token, note, created_at`

// scanCode reads one codes row into a model.Code and verifies the
// status/ownership invariant.  A row whose status disagrees with its
// ownership fields aborts the operation with ErrInvariantViolation
// instead of being silently repaired.
func scanCode(row interface{ Scan(...interface{}) error }) (model.Code, error) {
	var (
		c          model.Code
		userID     sql.NullInt64
		testerName sql.NullString
		claimedAt  sql.NullTime
		releasedAt sql.NullTime
		claimToken sql.NullString
		note       sql.NullString
	)
	if err := row.Scan(&c.Code, &c.Status, &c.CodeType, &userID, &testerName,
		&claimedAt, &releasedAt, &claimToken, &note, &c.CreatedAt); err != nil {
		return model.Code{}, err
	}
	if userID.Valid {
		v := uint64(userID.Int64)
		c.OwnerID = &v
	}
	if testerName.Valid {
		v := testerName.String
		c.TesterName = &v
	}
	if claimedAt.Valid {
		v := claimedAt.Time
		c.ClaimedAt = &v
	}
	if releasedAt.Valid {
		v := releasedAt.Time
		c.ReleasedAt = &v
	}
	if claimToken.Valid {
		v := claimToken.String
		c.ClaimToken = &v
	}
	if note.Valid {
		v := note.String
		c.Note = &v
	}
	reserved := c.Status == model.StatusReserved
	if reserved != (c.OwnerID != nil) || reserved != (c.ClaimToken != nil) {
		return model.Code{}, ErrInvariantViolation
	}
	return c, nil
}

// LockNextAvailableTx finds the oldest claimable code of the given
// type and acquires an exclusive row lock on it.  Rows already locked
// by a concurrent claim are skipped rather than waited on, so
// contending allocators spread across the pool instead of queueing on
// one hot row.  When region is non-empty the candidate set is further
// restricted to codes associated with a country in that region.
//
// The boolean result reports whether a candidate was locked; an empty
// tier is an ordinary outcome, not an error.
func (r *CodeRepo) LockNextAvailableTx(ctx context.Context, tx *sql.Tx, codeType model.CodeType, region string) (model.Code, bool, error) {
	q := `SELECT ` + codeColumns + `
		  FROM codes
		  WHERE status = ? AND code_type = ?`
	args := []interface{}{model.StatusAvailable, codeType}
	if region != "" {
		q += `
		  AND EXISTS (SELECT 1
					  FROM code_countries cc
					  JOIN countries co ON co.id = cc.country_id
					  JOIN regions rg ON rg.id = co.region_id
					  WHERE cc.code = codes.code AND rg.name = ?)`
		args = append(args, region)
	}
	// Never-claimed rows first, then the longest-resident ones.
	q += `
		  ORDER BY claimed_at IS NULL DESC, claimed_at ASC, created_at ASC
		  LIMIT 1
		  FOR UPDATE SKIP LOCKED`
	c, err := scanCode(tx.QueryRowContext(ctx, q, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Code{}, false, nil
		}
		return model.Code{}, false, err
	}
	return c, true, nil
}

// MarkReservedTx transitions a locked AVAILABLE row to RESERVED.  The
// caller must hold the row lock obtained by LockNextAvailableTx in the
// same transaction.
func (r *CodeRepo) MarkReservedTx(ctx context.Context, tx *sql.Tx, code string, userID uint64, testerName *string, claimToken string, now time.Time) error {
	const q = `UPDATE codes
			   SET status = ?, user_id = ?, tester_name = ?, claimed_at = ?, claim_token = ?, released_at = NULL
			   WHERE code = ?`
	_, err := tx.ExecContext(ctx, q, model.StatusReserved, userID, testerName, now, claimToken, code)
	return err
}

// ReleaseTx conditionally returns a RESERVED code to the pool.  The
// update matches only rows currently RESERVED (and owned by ownerID
// when non-nil), so a double release or a release of an unknown code
// reports false without mutating anything.  Ownership, claim token,
// claim timestamp and note are all cleared in the same statement.
func (r *CodeRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, code string, ownerID *uint64, now time.Time) (bool, error) {
	q := `UPDATE codes
		  SET status = ?, user_id = NULL, tester_name = NULL, claim_token = NULL,
			  claimed_at = NULL, released_at = ?, note = NULL
		  WHERE code = ? AND status = ?`
	args := []interface{}{model.StatusAvailable, now, code, model.StatusReserved}
	if ownerID != nil {
		q += ` AND user_id = ?`
		args = append(args, *ownerID)
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetForUpdateTx loads one code row under an exclusive lock.  Used by
// the moderation path before marking a code NON_USABLE.
func (r *CodeRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, code string) (model.Code, bool, error) {
	q := `SELECT ` + codeColumns + ` FROM codes WHERE code = ? FOR UPDATE`
	c, err := scanCode(tx.QueryRowContext(ctx, q, code))
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Code{}, false, nil
		}
		return model.Code{}, false, err
	}
	return c, true, nil
}

// MarkNonUsableTx pulls a code from circulation.  Ownership fields are
// cleared and the moderation reason lands in the note column.  The
// caller must have locked the row via GetForUpdateTx.
func (r *CodeRepo) MarkNonUsableTx(ctx context.Context, tx *sql.Tx, code string, reason *string) error {
	const q = `UPDATE codes
			   SET status = ?, user_id = NULL, tester_name = NULL, claim_token = NULL,
				   claimed_at = NULL, note = ?
			   WHERE code = ?`
	_, err := tx.ExecContext(ctx, q, model.StatusNonUsable, reason, code)
	return err
}

// DeleteAvailableTx removes a code that is still AVAILABLE.  Reserved
// or blocked codes are never deleted; the boolean result is false when
// the conditional delete matched nothing.
func (r *CodeRepo) DeleteAvailableTx(ctx context.Context, tx *sql.Tx, code string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`DELETE FROM codes WHERE code = ? AND status = ?`, code, model.StatusAvailable)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FilterExistingTx returns the subset of the given code strings that
// already exist in the codes table.  The rows are locked so a
// concurrent bulk ingestion of the same batch serializes instead of
// racing on duplicates.
func (r *CodeRepo) FilterExistingTx(ctx context.Context, tx *sql.Tx, codes []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(codes) == 0 {
		return existing, nil
	}
	placeholders := make([]string, len(codes))
	args := make([]interface{}, len(codes))
	for i, c := range codes {
		placeholders[i] = "?"
		args[i] = c
	}
	q := `SELECT code FROM codes WHERE code IN (` + strings.Join(placeholders, ",") + `) FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		existing[c] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return existing, nil
}

// InsertBulkTx inserts new AVAILABLE codes of one type in a single
// statement.  Passing an empty slice has no effect and returns nil.
func (r *CodeRepo) InsertBulkTx(ctx context.Context, tx *sql.Tx, codes []string, codeType model.CodeType) error {
	if len(codes) == 0 {
		return nil
	}
	query := `INSERT INTO codes (code, status, code_type) VALUES `
	args := make([]interface{}, 0, len(codes)*3)
	for i, c := range codes {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, c, model.StatusAvailable, codeType)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// AttachCountriesTx associates each of the given codes with each of
// the given countries.  Existing associations are left untouched.
func (r *CodeRepo) AttachCountriesTx(ctx context.Context, tx *sql.Tx, codes []string, countryIDs []uint64) error {
	if len(codes) == 0 || len(countryIDs) == 0 {
		return nil
	}
	query := `INSERT IGNORE INTO code_countries (code, country_id) VALUES `
	args := make([]interface{}, 0, len(codes)*len(countryIDs)*2)
	first := true
	for _, c := range codes {
		for _, cid := range countryIDs {
			if !first {
				query += ","
			}
			first = false
			query += "(?, ?)"
			args = append(args, c, cid)
		}
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// RegionNamesForCodeTx resolves the distinct region names a code is
// associated with, for denormalizing into audit entries.  COMMON codes
// usually have none.
func (r *CodeRepo) RegionNamesForCodeTx(ctx context.Context, tx *sql.Tx, code string) ([]string, error) {
	const q = `SELECT DISTINCT rg.name
			   FROM code_countries cc
			   JOIN countries co ON co.id = cc.country_id
			   JOIN regions rg ON rg.id = co.region_id
			   WHERE cc.code = ?
			   ORDER BY rg.name`
	rows, err := tx.QueryContext(ctx, q, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

// ClaimedCode is the read model returned to a user listing their
// currently reserved codes.  Regions carries the denormalized region
// names the code is valid in (empty for COMMON codes).
type ClaimedCode struct {
	Code       string     `json:"code"`
	CodeType   string     `json:"code_type"`
	ClaimToken string     `json:"claim_token"`
	ClaimedAt  *time.Time `json:"claimed_at"`
	Status     string     `json:"status"`
	TesterName *string    `json:"tester_name,omitempty"`
	Note       *string    `json:"note,omitempty"`
	Regions    []string   `json:"regions"`
}

// ListReservedByOwner returns the caller's reserved codes ordered by
// claim time descending.  This is a snapshot read; no locks are taken.
func (r *CodeRepo) ListReservedByOwner(ctx context.Context, userID uint64) ([]ClaimedCode, error) {
	const q = `SELECT code, code_type, claim_token, claimed_at, status, tester_name, note
			   FROM codes
			   WHERE user_id = ? AND status = ?
			   ORDER BY claimed_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID, model.StatusReserved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]ClaimedCode, 0)
	index := make(map[string]int)
	for rows.Next() {
		var (
			item       ClaimedCode
			claimedAt  sql.NullTime
			testerName sql.NullString
			note       sql.NullString
		)
		if err := rows.Scan(&item.Code, &item.CodeType, &item.ClaimToken, &claimedAt,
			&item.Status, &testerName, &note); err != nil {
			return nil, err
		}
		if claimedAt.Valid {
			t := claimedAt.Time
			item.ClaimedAt = &t
		}
		if testerName.Valid {
			v := testerName.String
			item.TesterName = &v
		}
		if note.Valid {
			v := note.String
			item.Note = &v
		}
		item.Regions = []string{}
		index[item.Code] = len(items)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}
	// Populate region names for all listed codes in one query.
	placeholders := make([]string, 0, len(items))
	args := make([]interface{}, 0, len(items))
	for _, it := range items {
		placeholders = append(placeholders, "?")
		args = append(args, it.Code)
	}
	regionQ := `SELECT DISTINCT cc.code, rg.name
				FROM code_countries cc
				JOIN countries co ON co.id = cc.country_id
				JOIN regions rg ON rg.id = co.region_id
				WHERE cc.code IN (` + strings.Join(placeholders, ",") + `)
				ORDER BY cc.code, rg.name`
	rrows, err := r.db.QueryContext(ctx, regionQ, args...)
	if err != nil {
		return nil, err
	}
	defer rrows.Close()
	for rrows.Next() {
		var code, name string
		if err := rrows.Scan(&code, &name); err != nil {
			return nil, err
		}
		if idx, ok := index[code]; ok {
			items[idx].Regions = append(items[idx].Regions, name)
		}
	}
	if err := rrows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// CountsByStatus reports how many codes exist per status, for the
// admin dashboard.
func (r *CodeRepo) CountsByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM codes GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// LockStaleReservedTx locks up to limit codes that have been reserved
// since before the cutoff.  Rows locked by a concurrent sweep or an
// in-flight release are skipped.
func (r *CodeRepo) LockStaleReservedTx(ctx context.Context, tx *sql.Tx, before time.Time, limit int) ([]model.Code, error) {
	q := `SELECT ` + codeColumns + `
		  FROM codes
		  WHERE status = ? AND claimed_at < ?
		  ORDER BY claimed_at ASC
		  LIMIT ?
		  FOR UPDATE SKIP LOCKED`
	rows, err := tx.QueryContext(ctx, q, model.StatusReserved, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var stale []model.Code
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		stale = append(stale, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stale, nil
}
