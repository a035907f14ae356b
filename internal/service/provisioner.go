package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/testerhub/code-pool-reservation/internal/model"
	"github.com/testerhub/code-pool-reservation/internal/repository"
)

// ErrCountryRequired is returned when a non-COMMON batch arrives
// without any country association; tagged pools must be scoped at
// creation time.
var ErrCountryRequired = errors.New("country association required for non-COMMON codes")

// Provisioner handles the administrative side of the pool: bulk code
// ingestion and deletion.  Like the allocator it commits every batch
// together with its audit entries in a single transaction.
type Provisioner struct {
	db      *sql.DB
	codes   *repository.CodeRepo
	audit   *repository.AuditRepo
	regions *repository.RegionRepo
}

// NewProvisioner wires a Provisioner from its store dependencies.
func NewProvisioner(db *sql.DB, codes *repository.CodeRepo, audit *repository.AuditRepo, regions *repository.RegionRepo) *Provisioner {
	if db == nil || codes == nil || audit == nil || regions == nil {
		panic("nil dependency passed to NewProvisioner")
	}
	return &Provisioner{db: db, codes: codes, audit: audit, regions: regions}
}

// BulkFailure explains why one submitted code was not inserted.
type BulkFailure struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// BulkAddResult reports the outcome of one ingestion batch.  A batch
// succeeds partially: bad codes and unknown countries are reported,
// not fatal.
type BulkAddResult struct {
	Inserted         []string      `json:"inserted"`
	Failed           []BulkFailure `json:"failed"`
	UnknownCountries []string      `json:"unknown_countries"`
	AttachedPairs    int           `json:"attached_pairs"`
}

// NormalizeCodes trims, upper-cases and dedupes a submitted batch.
// Blank entries and in-batch duplicates are reported as failures.
func NormalizeCodes(raw []string) ([]string, []BulkFailure) {
	seen := make(map[string]struct{}, len(raw))
	valid := make([]string, 0, len(raw))
	var failed []BulkFailure
	for _, r := range raw {
		code := strings.ToUpper(strings.TrimSpace(r))
		if code == "" {
			failed = append(failed, BulkFailure{Code: r, Reason: "empty_or_blank"})
			continue
		}
		if _, dup := seen[code]; dup {
			failed = append(failed, BulkFailure{Code: code, Reason: "duplicate_in_batch"})
			continue
		}
		seen[code] = struct{}{}
		valid = append(valid, code)
	}
	return valid, failed
}

// BulkAdd inserts a batch of AVAILABLE codes of one type, attaches
// them to the named countries, and writes one ADDED audit entry per
// inserted code.  Codes already present in the store are reported as
// duplicate_in_db.  Unknown country names are reported but do not fail
// the batch; non-COMMON batches must name at least one country.
func (p *Provisioner) BulkAdd(ctx context.Context, actor Identity, codeType model.CodeType, countryNames []string, rawCodes []string) (BulkAddResult, error) {
	var result BulkAddResult

	normalized, failed := NormalizeCodes(rawCodes)
	result.Failed = failed
	if len(normalized) == 0 {
		return result, repository.ErrNoValidCodes
	}

	cleanNames := make([]string, 0, len(countryNames))
	for _, n := range countryNames {
		if n = strings.TrimSpace(n); n != "" {
			cleanNames = append(cleanNames, n)
		}
	}
	if codeType != model.TypeCommon && len(cleanNames) == 0 {
		return result, ErrCountryRequired
	}

	countryMap, err := p.regions.CountriesByName(ctx, cleanNames)
	if err != nil {
		return result, err
	}
	knownNames := make([]string, 0, len(countryMap))
	countryIDs := make([]uint64, 0, len(countryMap))
	for name, co := range countryMap {
		knownNames = append(knownNames, name)
		countryIDs = append(countryIDs, co.ID)
	}
	sort.Strings(knownNames)
	for _, n := range cleanNames {
		if _, ok := countryMap[n]; !ok {
			result.UnknownCountries = append(result.UnknownCountries, n)
		}
	}
	sort.Strings(result.UnknownCountries)
	if codeType != model.TypeCommon && len(countryIDs) == 0 {
		return result, ErrCountryRequired
	}

	regionName := ""
	if len(countryIDs) > 0 {
		if regionName, err = p.regions.RegionNameForCountryIDs(ctx, countryIDs); err != nil {
			return result, err
		}
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return result, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	existing, err := p.codes.FilterExistingTx(ctx, tx, normalized)
	if err != nil {
		return result, err
	}
	fresh := make([]string, 0, len(normalized))
	for _, c := range normalized {
		if _, dup := existing[c]; dup {
			result.Failed = append(result.Failed, BulkFailure{Code: c, Reason: "duplicate_in_db"})
			continue
		}
		fresh = append(fresh, c)
	}
	if err := p.codes.InsertBulkTx(ctx, tx, fresh, codeType); err != nil {
		return result, err
	}
	if err := p.codes.AttachCountriesTx(ctx, tx, fresh, countryIDs); err != nil {
		return result, err
	}
	result.AttachedPairs = len(fresh) * len(countryIDs)

	scope := "ANY"
	if len(knownNames) > 0 {
		scope = strings.Join(knownNames, ", ")
	}
	note := fmt.Sprintf("code added for %s / %s", codeType, scope)
	for _, c := range fresh {
		entry := model.AuditLogEntry{
			Code:         c,
			UserID:       &actor.ID,
			UserName:     actor.UserName,
			ContactEmail: actor.ContactEmail,
			Action:       model.ActionAdded,
			Note:         &note,
		}
		if regionName != "" {
			rn := regionName
			entry.RegionName = &rn
		}
		if err := p.audit.InsertTx(ctx, tx, entry); err != nil {
			return result, err
		}
	}
	if err := tx.Commit(); err != nil {
		return result, err
	}
	committed = true
	result.Inserted = fresh
	return result, nil
}

// DeleteCode removes a code that is still AVAILABLE and records a
// DELETED audit entry.  Reserved and blocked codes cannot be deleted.
func (p *Provisioner) DeleteCode(ctx context.Context, actor Identity, code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	ok, err := p.codes.DeleteAvailableTx(ctx, tx, code)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrCodeNotFound
	}
	note := "deleted"
	entry := model.AuditLogEntry{
		Code:         code,
		UserID:       &actor.ID,
		UserName:     actor.UserName,
		ContactEmail: actor.ContactEmail,
		Action:       model.ActionDeleted,
		Note:         &note,
	}
	if err := p.audit.InsertTx(ctx, tx, entry); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
