package model

import "time"

// User represents an application user record as stored in the
// `users` table.  The Team field doubles as the user's code-type
// affinity: a claim without an explicit type falls back to it.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Team         – code-type affinity (TEAM_A, TEAM_B or COMMON).
//  UserName     – display name shown in audit reports.
//  ContactEmail – unique email address, used for login.
//  PasswordHash – bcrypt hashed password.
//  IsAdmin      – whether the account may call admin endpoints.
//  CreatedAt    – timestamp of creation.
type User struct {
	ID           uint64    // users.id
	Team         string    // users.team
	UserName     string    // users.user_name
	ContactEmail string    // users.contact_email
	PasswordHash string    // users.password_hash
	IsAdmin      bool      // users.is_admin
	CreatedAt    time.Time // users.created_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and contains metadata for expiry
// and revocation.  The plain token is not stored; only its
// SHA-256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA-256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
