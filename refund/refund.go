// Package refund computes the refund owed when an enrollment is
// cancelled partway through a schedule window. It is pure so the tier
// boundaries can be tested at exact instants, independent of the
// gateway.
package refund

import (
	"strconv"
	"time"
)

// Quote is the result of a refund calculation.
type Quote struct {
	// Rate as a rational: RateNum/RateDen of the original amount.
	RateNum int
	RateDen int
	Amount  int64 // floor(paid * RateNum / RateDen)
	Reason  string
}

// Rate returns the rate as a display string, e.g. "2/3".
func (q Quote) Rate() string {
	if q.RateNum == 0 {
		return "0"
	}
	if q.RateNum == q.RateDen {
		return "1"
	}
	return strconv.Itoa(q.RateNum) + "/" + strconv.Itoa(q.RateDen)
}

// Reason texts shown to the user alongside the quote.
const (
	reasonBeforeStart  = "수강 시작 전: 전액 환불"
	reasonBeforeThird  = "수강 기간 1/3 경과 전: 2/3 환불"
	reasonBeforeHalf   = "수강 기간 1/2 경과 전: 1/2 환불"
	reasonAfterHalf    = "수강 기간 1/2 경과 후: 환불 불가"
	reasonFreeOfCharge = "무료 수강: 환불 금액 없음"
)

// Compute maps (paid amount, schedule window, now) to a refund quote.
//
// Tiers by elapsed fraction of the window, inclusive of the lower
// bound and exclusive of the upper bound:
//
//	now < start          → 1   (full refund)
//	elapsed < dur/3      → 2/3
//	elapsed < dur/2      → 1/2
//	elapsed >= dur/2     → 0
//
// At exactly elapsed == dur/3 the 1/2 tier applies; at exactly
// elapsed == dur/2 no refund is owed. Free enrollments always quote
// zero and never touch the payment state machine.
func Compute(amount int64, start, end, now time.Time) Quote {
	if amount == 0 {
		return Quote{RateNum: 0, RateDen: 1, Amount: 0, Reason: reasonFreeOfCharge}
	}

	if now.Before(start) {
		return Quote{RateNum: 1, RateDen: 1, Amount: amount, Reason: reasonBeforeStart}
	}

	elapsed := now.Sub(start)
	duration := end.Sub(start)

	// elapsed*3 < duration avoids truncation at duration/3.
	if elapsed*3 < duration {
		return Quote{RateNum: 2, RateDen: 3, Amount: amount * 2 / 3, Reason: reasonBeforeThird}
	}
	if elapsed*2 < duration {
		return Quote{RateNum: 1, RateDen: 2, Amount: amount / 2, Reason: reasonBeforeHalf}
	}
	return Quote{RateNum: 0, RateDen: 1, Amount: 0, Reason: reasonAfterHalf}
}
