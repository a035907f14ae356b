package service

import (
	"reflect"
	"testing"
)

func TestNormalizeCodes(t *testing.T) {
	valid, failed := NormalizeCodes([]string{" abc-1 ", "ABC-1", "", "  ", "def-2"})
	if want := []string{"ABC-1", "DEF-2"}; !reflect.DeepEqual(valid, want) {
		t.Errorf("valid = %v, want %v", valid, want)
	}
	if len(failed) != 3 {
		t.Fatalf("failed = %v, want 3 entries", failed)
	}
	reasons := map[string]int{}
	for _, f := range failed {
		reasons[f.Reason]++
	}
	if reasons["empty_or_blank"] != 2 || reasons["duplicate_in_batch"] != 1 {
		t.Errorf("failure reasons = %v", reasons)
	}
}

func TestNormalizeCodesAllInvalid(t *testing.T) {
	valid, failed := NormalizeCodes([]string{"", "   "})
	if len(valid) != 0 {
		t.Errorf("valid = %v, want none", valid)
	}
	if len(failed) != 2 {
		t.Errorf("failed = %v, want 2 entries", failed)
	}
}

func TestReleaseNote(t *testing.T) {
	if got := releaseNote("", ""); got != nil {
		t.Errorf("empty inputs should yield nil, got %q", *got)
	}
	if got := releaseNote("TICKET-9", ""); got == nil || *got != "clearance=TICKET-9" {
		t.Errorf("clearance only = %v", got)
	}
	if got := releaseNote("", "done testing"); got == nil || *got != "done testing" {
		t.Errorf("note only = %v", got)
	}
	if got := releaseNote("TICKET-9", "done"); got == nil || *got != "clearance=TICKET-9; done" {
		t.Errorf("both = %v", got)
	}
}
