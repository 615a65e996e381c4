package ledger

import "errors"

// Error taxonomy surfaced by ledger operations. Controllers map these
// to HTTP codes; none of them leaves partial state behind.
var (
	// Precondition errors, rejected before any write
	ErrScheduleClosed  = errors.New("schedule is not open for purchase")
	ErrAlreadyEnrolled = errors.New("already enrolled in this schedule")

	// Input errors, rejected before any write
	ErrInvalidContactInfo = errors.New("invalid contact info")

	// Gateway errors: the attempted enrollment is cancelled so the
	// user can retry without hitting ErrAlreadyEnrolled. Rejected means
	// the gateway denied the bill; Unreachable covers timeout, network
	// failure and 5xx.
	ErrGatewayRejected    = errors.New("결제 요청 실패")
	ErrGatewayUnreachable = errors.New("결제 서버에 연결할 수 없습니다")

	ErrNotFound        = errors.New("not found")
	ErrAlreadyTerminal = errors.New("enrollment already cancelled or completed")
)
