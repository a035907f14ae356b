//go:build integration

package service

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/testerhub/code-pool-reservation/internal/model"
	"github.com/testerhub/code-pool-reservation/internal/repository"
)

func TestBulkAddInsertsAndReportsFailures(t *testing.T) {
	db := requireDB(t)
	resetPool(t, db)
	admin := seedUser(t, db, "TEAM_A", "root", "root@example.com")
	actor := Identity{ID: admin, UserName: "root", ContactEmail: "root@example.com", Team: "TEAM_A"}

	emea := seedRegion(t, db, "EMEA")
	seedCountry(t, db, "Germany", emea)
	seedCode(t, db, "DUP-1", model.TypeTeamA, time.Now().UTC())

	prov := newProvisioner(db)
	result, err := prov.BulkAdd(context.Background(), actor, model.TypeTeamA,
		[]string{"Germany", "Atlantis"},
		[]string{"new-1", "NEW-1", "dup-1", "", "new-2"})
	if err != nil {
		t.Fatalf("bulk add: %v", err)
	}
	if want := []string{"NEW-1", "NEW-2"}; !reflect.DeepEqual(result.Inserted, want) {
		t.Errorf("inserted = %v, want %v", result.Inserted, want)
	}
	reasons := map[string]int{}
	for _, f := range result.Failed {
		reasons[f.Reason]++
	}
	if reasons["duplicate_in_batch"] != 1 || reasons["empty_or_blank"] != 1 || reasons["duplicate_in_db"] != 1 {
		t.Errorf("failure reasons = %v", reasons)
	}
	if !reflect.DeepEqual(result.UnknownCountries, []string{"Atlantis"}) {
		t.Errorf("unknown countries = %v, want [Atlantis]", result.UnknownCountries)
	}
	if result.AttachedPairs != 2 { // 2 fresh codes x 1 known country
		t.Errorf("attached pairs = %d, want 2", result.AttachedPairs)
	}
	for _, code := range result.Inserted {
		if s := codeStatus(t, db, code); s != model.StatusAvailable {
			t.Errorf("status of %s = %s, want AVAILABLE", code, s)
		}
		if n := auditCount(t, db, code, model.ActionAdded); n != 1 {
			t.Errorf("ADDED audit entries for %s = %d, want 1", code, n)
		}
	}
}

func TestBulkAddRequiresCountryForTeamPools(t *testing.T) {
	db := requireDB(t)
	resetPool(t, db)
	admin := seedUser(t, db, "TEAM_A", "root", "root@example.com")
	actor := Identity{ID: admin, UserName: "root", ContactEmail: "root@example.com", Team: "TEAM_A"}

	prov := newProvisioner(db)
	ctx := context.Background()

	if _, err := prov.BulkAdd(ctx, actor, model.TypeTeamA, nil, []string{"T-1"}); !errors.Is(err, ErrCountryRequired) {
		t.Errorf("team batch without countries err = %v, want ErrCountryRequired", err)
	}

	// COMMON codes are never country-scoped.
	result, err := prov.BulkAdd(ctx, actor, model.TypeCommon, nil, []string{"C-1"})
	if err != nil {
		t.Fatalf("common batch: %v", err)
	}
	if !reflect.DeepEqual(result.Inserted, []string{"C-1"}) {
		t.Errorf("inserted = %v, want [C-1]", result.Inserted)
	}

	if _, err := prov.BulkAdd(ctx, actor, model.TypeCommon, nil, []string{"", " "}); !errors.Is(err, repository.ErrNoValidCodes) {
		t.Errorf("all-blank batch err = %v, want ErrNoValidCodes", err)
	}
}

func TestDeleteCodeOnlyWhenAvailable(t *testing.T) {
	db := requireDB(t)
	resetPool(t, db)
	admin := seedUser(t, db, "TEAM_A", "root", "root@example.com")
	actor := Identity{ID: admin, UserName: "root", ContactEmail: "root@example.com", Team: "TEAM_A"}

	seedCode(t, db, "DEL-1", model.TypeCommon, time.Now().UTC())
	seedReservedCode(t, db, "HELD-1", model.TypeCommon, admin, time.Now().UTC())

	prov := newProvisioner(db)
	ctx := context.Background()

	if err := prov.DeleteCode(ctx, actor, "del-1"); err != nil {
		t.Fatalf("delete available code: %v", err)
	}
	if n := auditCount(t, db, "DEL-1", model.ActionDeleted); n != 1 {
		t.Errorf("DELETED audit entries = %d, want 1", n)
	}

	if err := prov.DeleteCode(ctx, actor, "HELD-1"); !errors.Is(err, repository.ErrCodeNotFound) {
		t.Errorf("delete reserved code err = %v, want ErrCodeNotFound", err)
	}
	if s := codeStatus(t, db, "HELD-1"); s != model.StatusReserved {
		t.Errorf("reserved code status = %s, want RESERVED", s)
	}

	if err := prov.DeleteCode(ctx, actor, "MISSING"); !errors.Is(err, repository.ErrCodeNotFound) {
		t.Errorf("delete unknown code err = %v, want ErrCodeNotFound", err)
	}
}
