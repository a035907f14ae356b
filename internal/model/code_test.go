package model

import "testing"

func TestParseCodeType(t *testing.T) {
	cases := []struct {
		in   string
		want CodeType
		ok   bool
	}{
		{"TEAM_A", TypeTeamA, true},
		{"team_a", TypeTeamA, true},
		{"  Team_B  ", TypeTeamB, true},
		{"COMMON", TypeCommon, true},
		{"common", TypeCommon, true},
		{"", "", false},
		{"TEAM_C", "", false},
		{"AVAILABLE", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseCodeType(tc.in)
		if ok != tc.ok {
			t.Errorf("ParseCodeType(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			continue
		}
		if ok && got != tc.want {
			t.Errorf("ParseCodeType(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
