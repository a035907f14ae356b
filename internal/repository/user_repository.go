package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/testerhub/code-pool-reservation/internal/model"
	"github.com/testerhub/code-pool-reservation/internal/utils"
)

// UserRepo persists application users.  Account management is
// administrative plumbing around the allocation core: the allocator
// only ever reads users, and deletion is refused while a user still
// holds reserved codes so audit joins stay meaningful.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, team, userName, email, password string, isAdmin bool, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (team, user_name, contact_email, password_hash, is_admin) VALUES (?,?,?,?,?)",
		team, userName, email, hash, isAdmin)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,team,user_name,contact_email,password_hash,is_admin,created_at FROM users WHERE contact_email=? LIMIT 1",
		email).Scan(&u.ID, &u.Team, &u.UserName, &u.ContactEmail, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,team,user_name,contact_email,password_hash,is_admin,created_at FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Team, &u.UserName, &u.ContactEmail, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrUserNotFound
	}
	return u, err
}

// UserUpdate carries the mutable user fields.  Nil pointers leave the
// column unchanged; Password is re-hashed when set.
type UserUpdate struct {
	Team     *string
	UserName *string
	Email    *string
	Password *string
	IsAdmin  *bool
}

// Update applies the non-nil fields of upd to one user row.
func (r *UserRepo) Update(ctx context.Context, id uint64, upd UserUpdate, cost int) error {
	sets := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)
	if upd.Team != nil {
		sets = append(sets, "team=?")
		args = append(args, *upd.Team)
	}
	if upd.UserName != nil {
		sets = append(sets, "user_name=?")
		args = append(args, *upd.UserName)
	}
	if upd.Email != nil {
		sets = append(sets, "contact_email=?")
		args = append(args, strings.ToLower(strings.TrimSpace(*upd.Email)))
	}
	if upd.Password != nil {
		hash, err := utils.HashPassword(*upd.Password, cost)
		if err != nil {
			return err
		}
		sets = append(sets, "password_hash=?")
		args = append(args, hash)
	}
	if upd.IsAdmin != nil {
		sets = append(sets, "is_admin=?")
		args = append(args, *upd.IsAdmin)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ",")+" WHERE id=?", args...)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrEmailExists
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish "absent" from "no-op update on identical values".
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a user unless they still hold reserved codes.  The
// count check and the delete run in one transaction so a concurrent
// claim cannot slip between them.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	var reserved int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM codes WHERE user_id=? AND status=? FOR UPDATE",
		id, model.StatusReserved).Scan(&reserved); err != nil {
		return err
	}
	if reserved > 0 {
		return ErrUserHasReservedCodes
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// UserWithCodes pairs a user with their currently reserved codes for
// the admin overview.
type UserWithCodes struct {
	ID           uint64        `json:"id"`
	Team         string        `json:"team"`
	UserName     string        `json:"user_name"`
	ContactEmail string        `json:"contact_email"`
	Codes        []ClaimedCode `json:"codes"`
}

// ListWithReservedCodes returns all non-admin users together with the
// codes they currently hold.  Admins are excluded: they provision
// codes, they do not consume them.
func (r *UserRepo) ListWithReservedCodes(ctx context.Context) ([]UserWithCodes, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,team,user_name,contact_email FROM users WHERE is_admin=false ORDER BY team, user_name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := make([]UserWithCodes, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		var u UserWithCodes
		if err := rows.Scan(&u.ID, &u.Team, &u.UserName, &u.ContactEmail); err != nil {
			return nil, err
		}
		u.Codes = []ClaimedCode{}
		index[u.ID] = len(users)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return users, nil
	}
	crows, err := r.DB.QueryContext(ctx,
		`SELECT user_id, code, code_type, claim_token, claimed_at
		 FROM codes
		 WHERE status=? AND user_id IS NOT NULL
		 ORDER BY claimed_at DESC`, model.StatusReserved)
	if err != nil {
		return nil, err
	}
	defer crows.Close()
	for crows.Next() {
		var (
			userID    uint64
			item      ClaimedCode
			claimedAt sql.NullTime
		)
		if err := crows.Scan(&userID, &item.Code, &item.CodeType, &item.ClaimToken, &claimedAt); err != nil {
			return nil, err
		}
		if claimedAt.Valid {
			t := claimedAt.Time
			item.ClaimedAt = &t
		}
		item.Status = string(model.StatusReserved)
		item.Regions = []string{}
		if idx, ok := index[userID]; ok {
			users[idx].Codes = append(users[idx].Codes, item)
		}
	}
	if err := crows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
