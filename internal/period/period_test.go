package period

import (
	"testing"
	"time"
)

func TestResolve(t *testing.T) {
	loc := time.FixedZone("AST", 3*3600)
	// Wednesday 2025-11-12 15:04 local.
	ref := time.Date(2025, 11, 12, 15, 4, 0, 0, loc)

	cases := []struct {
		token      Token
		start, end time.Time
	}{
		{Day, time.Date(2025, 11, 12, 0, 0, 0, 0, loc), time.Date(2025, 11, 13, 0, 0, 0, 0, loc)},
		{Week, time.Date(2025, 11, 9, 0, 0, 0, 0, loc), time.Date(2025, 11, 16, 0, 0, 0, 0, loc)},
		{Month, time.Date(2025, 11, 1, 0, 0, 0, 0, loc), time.Date(2025, 12, 1, 0, 0, 0, 0, loc)},
		{Year, time.Date(2025, 1, 1, 0, 0, 0, 0, loc), time.Date(2026, 1, 1, 0, 0, 0, 0, loc)},
	}
	for _, tc := range cases {
		t.Run(string(tc.token), func(t *testing.T) {
			iv := Resolve(tc.token, ref)
			if !iv.Start.Equal(tc.start) || !iv.End.Equal(tc.end) {
				t.Fatalf("Resolve(%s) = [%v, %v), want [%v, %v)", tc.token, iv.Start, iv.End, tc.start, tc.end)
			}
		})
	}
}

func TestResolveWeekOnSunday(t *testing.T) {
	ref := time.Date(2025, 11, 9, 23, 0, 0, 0, time.UTC) // Sunday
	iv := Resolve(Week, ref)
	if !iv.Start.Equal(time.Date(2025, 11, 9, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("week start = %v", iv.Start)
	}
	if !iv.Contains(ref) {
		t.Fatalf("week should contain its reference")
	}
}

func TestResolveWeekAcrossMonthBoundary(t *testing.T) {
	ref := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) // Saturday
	iv := Resolve(Week, ref)
	if !iv.Start.Equal(time.Date(2025, 2, 23, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("week start = %v", iv.Start)
	}
}

func TestResolveDoesNotDriftAcrossCalls(t *testing.T) {
	ref := time.Date(2025, 11, 12, 15, 4, 0, 0, time.UTC)
	_ = Resolve(Week, ref)
	month := Resolve(Month, ref)
	if !month.Start.Equal(time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("month after week = %v", month.Start)
	}
	if ref.Day() != 12 {
		t.Fatalf("reference mutated: %v", ref)
	}
}

func TestResolveAll(t *testing.T) {
	ref := time.Date(2025, 11, 12, 15, 4, 0, 0, time.UTC)
	iv := Resolve(All, ref)
	if !iv.Contains(ref) {
		t.Fatalf("all should include the reference instant")
	}
	if !iv.Contains(time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("all should include old entries")
	}
	if iv.Contains(ref.Add(time.Second)) {
		t.Fatalf("all should stop at the reference instant")
	}
}

func TestParseToken(t *testing.T) {
	cases := map[string]Token{
		"day": Day, " WEEK ": Week, "month": Month, "year": Year, "all": All, "": All, "bogus": All,
	}
	for in, want := range cases {
		if got := ParseToken(in); got != want {
			t.Errorf("ParseToken(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestYearMonth(t *testing.T) {
	jan := YearMonth{Year: 2025, Month: time.January}
	if prev := jan.Previous(); prev.Year != 2024 || prev.Month != time.December {
		t.Fatalf("Previous = %+v", prev)
	}
	if ly := jan.SameMonthLastYear(); ly.Year != 2024 || ly.Month != time.January {
		t.Fatalf("SameMonthLastYear = %+v", ly)
	}
	if d := (YearMonth{Year: 2024, Month: time.February}).DaysIn(); d != 29 {
		t.Fatalf("DaysIn = %d", d)
	}

	got := YearMonth{Year: 2025, Month: time.February}.Trailing(3)
	want := []YearMonth{{2024, time.December}, {2025, time.January}, {2025, time.February}}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Trailing[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestIntervalContainsIsHalfOpen(t *testing.T) {
	iv := MonthOf(2025, time.November, time.UTC)
	if !iv.Contains(iv.Start) {
		t.Fatalf("start must be included")
	}
	if iv.Contains(iv.End) {
		t.Fatalf("end must be excluded")
	}
}
