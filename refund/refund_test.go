package refund

import (
	"testing"
	"time"
)

func day(n int) time.Time {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, n)
}

func TestCompute_TierBoundaries(t *testing.T) {
	// 30-day window, 300,000 won
	start, end := day(0), day(30)
	const amount = int64(300000)

	cases := []struct {
		name       string
		now        time.Time
		wantRate   string
		wantAmount int64
	}{
		{"day before start refunds in full", day(-1), "1", 300000},
		{"day 0 is inside the first third", day(0), "2/3", 200000},
		{"day 9 is inside the first third", day(9), "2/3", 200000},
		{"day 10 boundary moves to the half tier", day(10), "1/2", 150000},
		{"day 14 is inside the half tier", day(14), "1/2", 150000},
		{"day 15 boundary moves to no refund", day(15), "0", 0},
		{"day 29 refunds nothing", day(29), "0", 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := Compute(amount, start, end, tc.now)
			if q.Rate() != tc.wantRate {
				t.Errorf("rate = %s, want %s", q.Rate(), tc.wantRate)
			}
			if q.Amount != tc.wantAmount {
				t.Errorf("amount = %d, want %d", q.Amount, tc.wantAmount)
			}
		})
	}
}

func TestCompute_FloorsOddAmounts(t *testing.T) {
	start, end := day(0), day(30)

	// 100,001 * 2/3 = 66,667.33..., must floor
	q := Compute(100001, start, end, day(5))
	if q.Amount != 66667 {
		t.Errorf("amount = %d, want 66667", q.Amount)
	}

	// 99,999 / 2 = 49,999.5, must floor
	q = Compute(99999, start, end, day(12))
	if q.Amount != 49999 {
		t.Errorf("amount = %d, want 49999", q.Amount)
	}
}

func TestCompute_FreeEnrollment(t *testing.T) {
	// Free enrollments quote zero in every tier and never consult the
	// window at all.
	for _, now := range []time.Time{day(-3), day(1), day(20), day(40)} {
		q := Compute(0, day(0), day(30), now)
		if q.Amount != 0 || q.RateNum != 0 {
			t.Errorf("free quote at %v = %+v, want zero", now, q)
		}
	}
}

func TestCompute_Deterministic(t *testing.T) {
	a := Compute(490000, day(0), day(30), day(7))
	b := Compute(490000, day(0), day(30), day(7))
	if a != b {
		t.Errorf("same inputs produced different quotes: %+v vs %+v", a, b)
	}
}
