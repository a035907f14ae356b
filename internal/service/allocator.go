// Package service contains the transactional core of the code pool:
// the allocator/releaser pair, bulk provisioning and the stale-claim
// sweep.  Every operation owns exactly one short-lived transaction and
// commits the code-row mutation together with its audit entry, or not
// at all.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/testerhub/code-pool-reservation/internal/model"
	"github.com/testerhub/code-pool-reservation/internal/repository"
)

// Identity is the authenticated caller as seen by the core.  It is
// produced by the auth middleware from JWT claims; the core never
// loads users itself.
type Identity struct {
	ID           uint64
	UserName     string
	ContactEmail string
	Team         string // code-type affinity, e.g. "TEAM_A"
}

// Allocator hands out and takes back codes.  It is safe for
// concurrent use from any number of request workers: all mutual
// exclusion lives in the store's row locks.
type Allocator struct {
	db    *sql.DB
	codes *repository.CodeRepo
	audit *repository.AuditRepo

	// ownerOnlyRelease gates release to the current owner.  Off by
	// default: operationally anyone may free a stuck code by its
	// string, which is the historical behaviour.
	ownerOnlyRelease bool
}

// NewAllocator wires an Allocator from its store dependencies.
func NewAllocator(db *sql.DB, codes *repository.CodeRepo, audit *repository.AuditRepo, ownerOnlyRelease bool) *Allocator {
	if db == nil || codes == nil || audit == nil {
		panic("nil dependency passed to NewAllocator")
	}
	return &Allocator{db: db, codes: codes, audit: audit, ownerOnlyRelease: ownerOnlyRelease}
}

// ClaimRequest describes one claim attempt.
type ClaimRequest struct {
	Identity   Identity
	CodeType   model.CodeType // requested tier
	Region     string         // optional; ignored for COMMON
	TesterName *string        // free-text label carried onto the code and its audit entry
}

// tier is one step of the fallback ladder.  The allocator walks the
// ladder in order and stops at the first tier that yields a row, so
// adding tiers later is purely a data change.
type tier struct {
	codeType model.CodeType
	region   string
}

// Claim atomically hands out one unused code.  It tries the requested
// tier first (region-restricted for non-COMMON types when a region was
// supplied), then falls back once to the COMMON pool with the region
// filter dropped.  On success the reserved code and its RESERVED audit
// entry are committed together.  When both tiers are empty it returns
// repository.ErrNoCodesAvailable and mutates nothing.
//
// Transient store conflicts surface to the caller unretried: retry
// policy belongs to the transport layer.
func (a *Allocator) Claim(ctx context.Context, req ClaimRequest) (model.Code, error) {
	tiers := []tier{{codeType: req.CodeType, region: req.Region}}
	if req.CodeType == model.TypeCommon {
		// COMMON codes are never region-restricted.
		tiers[0].region = ""
	} else {
		tiers = append(tiers, tier{codeType: model.TypeCommon})
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Code{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, t := range tiers {
		candidate, found, err := a.codes.LockNextAvailableTx(ctx, tx, t.codeType, t.region)
		if err != nil {
			return model.Code{}, err
		}
		if !found {
			continue
		}

		now := time.Now().UTC()
		token := uuid.NewString()
		if err := a.codes.MarkReservedTx(ctx, tx, candidate.Code, req.Identity.ID, req.TesterName, token, now); err != nil {
			return model.Code{}, err
		}

		regionName, err := a.resolveRegionTx(ctx, tx, candidate.Code, t.region)
		if err != nil {
			return model.Code{}, err
		}
		entry := model.AuditLogEntry{
			Code:         candidate.Code,
			UserID:       &req.Identity.ID,
			UserName:     req.Identity.UserName,
			ContactEmail: req.Identity.ContactEmail,
			TesterName:   req.TesterName,
			Action:       model.ActionReserved,
			RegionName:   regionName,
			LoggedAt:     now,
		}
		if err := a.audit.InsertTx(ctx, tx, entry); err != nil {
			return model.Code{}, err
		}
		if err := tx.Commit(); err != nil {
			return model.Code{}, err
		}
		committed = true

		candidate.Status = model.StatusReserved
		candidate.OwnerID = &req.Identity.ID
		candidate.TesterName = req.TesterName
		candidate.ClaimedAt = &now
		candidate.ClaimToken = &token
		candidate.ReleasedAt = nil
		return candidate, nil
	}

	return model.Code{}, repository.ErrNoCodesAvailable
}

// resolveRegionTx picks the region label to denormalize into an audit
// entry: the explicitly requested region when present, otherwise the
// first region the code is associated with, otherwise nil.
func (a *Allocator) resolveRegionTx(ctx context.Context, tx *sql.Tx, code, requested string) (*string, error) {
	if requested != "" {
		return &requested, nil
	}
	names, err := a.codes.RegionNamesForCodeTx(ctx, tx, code)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, nil
	}
	return &names[0], nil
}

// ReleaseRequest describes one release attempt.  ClearanceRef is an
// external ticket/approval reference carried into the audit note.
type ReleaseRequest struct {
	Identity     Identity
	Code         string
	ClearanceRef string
	Note         string
}

// Release returns a reserved code to the pool.  The conditional update
// matches only a currently-RESERVED row (and, under the owner-only
// policy, only the caller's own row); when it matches nothing the call
// fails with ErrCodeNotFound — or ErrForbidden when the code turns out
// to be held by someone else under the owner-only policy — and no
// audit entry is written.
func (a *Allocator) Release(ctx context.Context, req ReleaseRequest) (string, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var owner *uint64
	if a.ownerOnlyRelease {
		owner = &req.Identity.ID
	}
	now := time.Now().UTC()
	ok, err := a.codes.ReleaseTx(ctx, tx, req.Code, owner, now)
	if err != nil {
		return "", err
	}
	if !ok {
		if a.ownerOnlyRelease {
			// Distinguish "not yours" from "not reserved at all".
			c, found, err := a.codes.GetForUpdateTx(ctx, tx, req.Code)
			if err != nil {
				return "", err
			}
			if found && c.Status == model.StatusReserved && c.OwnerID != nil && *c.OwnerID != req.Identity.ID {
				return "", repository.ErrForbidden
			}
		}
		return "", repository.ErrCodeNotFound
	}

	regionName, err := a.resolveRegionTx(ctx, tx, req.Code, "")
	if err != nil {
		return "", err
	}
	entry := model.AuditLogEntry{
		Code:         req.Code,
		UserID:       &req.Identity.ID,
		UserName:     req.Identity.UserName,
		ContactEmail: req.Identity.ContactEmail,
		Action:       model.ActionReleased,
		RegionName:   regionName,
		Note:         releaseNote(req.ClearanceRef, req.Note),
		LoggedAt:     now,
	}
	if err := a.audit.InsertTx(ctx, tx, entry); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	committed = true
	return req.Code, nil
}

// releaseNote folds the clearance reference and the free-text note
// into the single audit note column.
func releaseNote(clearanceRef, note string) *string {
	switch {
	case clearanceRef != "" && note != "":
		s := fmt.Sprintf("clearance=%s; %s", clearanceRef, note)
		return &s
	case clearanceRef != "":
		s := "clearance=" + clearanceRef
		return &s
	case note != "":
		return &note
	}
	return nil
}

// ListClaimed returns the caller's currently reserved codes, newest
// claim first.  Snapshot read; no locks.
func (a *Allocator) ListClaimed(ctx context.Context, userID uint64) ([]repository.ClaimedCode, error) {
	return a.codes.ListReservedByOwner(ctx, userID)
}

// Block pulls a code from circulation (moderation path).  The row is
// locked, moved to NON_USABLE with ownership cleared, and a BLOCKED
// audit entry is committed alongside.
func (a *Allocator) Block(ctx context.Context, ident Identity, code string, reason *string) (string, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	c, found, err := a.codes.GetForUpdateTx(ctx, tx, code)
	if err != nil {
		return "", err
	}
	if !found {
		return "", repository.ErrCodeNotFound
	}
	if err := a.codes.MarkNonUsableTx(ctx, tx, c.Code, reason); err != nil {
		return "", err
	}
	entry := model.AuditLogEntry{
		Code:         c.Code,
		UserID:       &ident.ID,
		UserName:     ident.UserName,
		ContactEmail: ident.ContactEmail,
		Action:       model.ActionBlocked,
		Note:         reason,
	}
	if err := a.audit.InsertTx(ctx, tx, entry); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	committed = true
	return c.Code, nil
}

// systemActor attributes sweep-generated audit entries.
var systemActor = Identity{UserName: "system", ContactEmail: "system@code-pool"}

// ExpireStale releases codes that have been reserved since before
// now-maxAge, up to limit per call.  Each released code gets its own
// RELEASED audit entry attributed to the system actor.  Rows locked by
// concurrent operations are skipped and picked up by a later sweep.
func (a *Allocator) ExpireStale(ctx context.Context, maxAge time.Duration, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	cutoff := now.Add(-maxAge)
	stale, err := a.codes.LockStaleReservedTx(ctx, tx, cutoff, limit)
	if err != nil {
		return nil, err
	}
	released := make([]string, 0, len(stale))
	for _, c := range stale {
		ok, err := a.codes.ReleaseTx(ctx, tx, c.Code, nil, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Lost the row between lock and update; should not happen
			// while we hold the lock.
			return nil, repository.ErrInvariantViolation
		}
		note := fmt.Sprintf("auto-released after %s", maxAge)
		entry := model.AuditLogEntry{
			Code:         c.Code,
			UserName:     systemActor.UserName,
			ContactEmail: systemActor.ContactEmail,
			Action:       model.ActionReleased,
			Note:         &note,
			LoggedAt:     now,
		}
		if err := a.audit.InsertTx(ctx, tx, entry); err != nil {
			return nil, err
		}
		released = append(released, c.Code)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return released, nil
}
