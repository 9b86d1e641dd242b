package domain

import "testing"

func TestQualityIsValid(t *testing.T) {
	for q := Blackout; q <= Perfect; q++ {
		if !q.IsValid() {
			t.Errorf("Quality %d should be valid", q)
		}
	}
	if Quality(-1).IsValid() {
		t.Error("Quality -1 should be invalid")
	}
	if Quality(6).IsValid() {
		t.Error("Quality 6 should be invalid")
	}
}

func TestQualityQualifies(t *testing.T) {
	cases := []struct {
		q    Quality
		want bool
	}{
		{Blackout, false},
		{Incorrect, false},
		{IncorrectFamiliar, false},
		{CorrectHard, true},
		{CorrectHesitant, true},
		{Perfect, true},
	}
	for _, tc := range cases {
		if got := tc.q.Qualifies(); got != tc.want {
			t.Errorf("Quality %d Qualifies() = %v, want %v", tc.q, got, tc.want)
		}
	}
}

func TestQualityString(t *testing.T) {
	if got := Perfect.String(); got != "Perfect" {
		t.Errorf("Perfect.String() = %q", got)
	}
	if got := Quality(9).String(); got != "Quality(9)" {
		t.Errorf("Quality(9).String() = %q", got)
	}
}

func TestProgressStateZeroValueIsNew(t *testing.T) {
	var m map[string]ProgressState
	st := m["missing"]
	if st.Tracked {
		t.Error("map miss should yield the New state")
	}
	if st != NewCardState() {
		t.Error("zero value should equal NewCardState()")
	}
}
