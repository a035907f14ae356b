package model

import (
	"strings"
	"time"
)

// CodeStatus enumerates the lifecycle states of an allocation code as
// stored in the codes.status column.  AVAILABLE codes may be claimed,
// RESERVED codes are held by exactly one user, and NON_USABLE codes
// have been pulled from circulation by an administrator and never
// return to the pool on their own.
type CodeStatus string

const (
	StatusAvailable CodeStatus = "AVAILABLE"
	StatusReserved  CodeStatus = "RESERVED"
	StatusNonUsable CodeStatus = "NON_USABLE"
)

// CodeType partitions the pool into team-specific sub-pools plus a
// shared overflow pool.  TEAM_A and TEAM_B codes must be associated
// with at least one country at provisioning time; COMMON codes are
// valid everywhere and are the fallback tier for every claim.
type CodeType string

const (
	TypeTeamA  CodeType = "TEAM_A"
	TypeTeamB  CodeType = "TEAM_B"
	TypeCommon CodeType = "COMMON"
)

// ParseCodeType normalizes a raw string into a CodeType.  It accepts
// any casing and surrounding whitespace.  The boolean result is false
// when the input matches no known type.
func ParseCodeType(raw string) (CodeType, bool) {
	switch CodeType(strings.ToUpper(strings.TrimSpace(raw))) {
	case TypeTeamA:
		return TypeTeamA, true
	case TypeTeamB:
		return TypeTeamB, true
	case TypeCommon:
		return TypeCommon, true
	}
	return "", false
}

// Code mirrors the `codes` table.  The code string itself is the
// primary key and never changes after creation; neither do CodeType
// and the country associations (enforced by the provisioning path,
// not mutated anywhere else).
//
// Invariant: Status == RESERVED exactly when OwnerID and ClaimToken
// are both non-nil.
type Code struct {
	Code       string     // codes.code (PK, immutable)
	Status     CodeStatus // codes.status
	CodeType   CodeType   // codes.code_type (fixed at creation)
	OwnerID    *uint64    // codes.user_id (nullable, set while RESERVED)
	TesterName *string    // codes.tester_name (nullable)
	ClaimedAt  *time.Time // codes.claimed_at (set on claim, cleared on release)
	ReleasedAt *time.Time // codes.released_at (set on release)
	ClaimToken *string    // codes.claim_token (UUID minted on each claim)
	Note       *string    // codes.note (cleared on release)
	CreatedAt  time.Time  // codes.created_at
}

// Region is a read-only reference row from the `regions` table.
type Region struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// Country is a read-only reference row from the `countries` table.
// Every country belongs to exactly one region.
type Country struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	RegionID uint64 `json:"region_id"`
}
