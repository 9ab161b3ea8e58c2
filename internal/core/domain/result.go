package domain

import "fmt"

// Raw codes returned by the atomic reservation unit. They never leave the
// storage adapters: Classify turns them into a ReservationResult.
const (
	CodeInsufficientStock int64 = 0
	CodeReserved          int64 = 1
	CodeIdempotent        int64 = 2
)

// ReservationResult is the caller-facing outcome of a reservation attempt.
// The zero value is ResultFailed.
type ReservationResult int

const (
	ResultFailed ReservationResult = iota
	ResultReserved
	ResultInsufficientStock
	ResultIdempotent
)

func (r ReservationResult) String() string {
	switch r {
	case ResultReserved:
		return "RESERVED"
	case ResultInsufficientStock:
		return "INSUFFICIENT_STOCK"
	case ResultIdempotent:
		return "IDEMPOTENT"
	default:
		return "FAILED"
	}
}

func (r ReservationResult) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *ReservationResult) UnmarshalText(text []byte) error {
	switch string(text) {
	case "RESERVED":
		*r = ResultReserved
	case "INSUFFICIENT_STOCK":
		*r = ResultInsufficientStock
	case "IDEMPOTENT":
		*r = ResultIdempotent
	case "FAILED":
		*r = ResultFailed
	default:
		return fmt.Errorf("unknown reservation result %q", text)
	}
	return nil
}

// Classify maps a raw store outcome to a ReservationResult. Anything that is
// not one of the three known integer codes, including nil, is ResultFailed.
func Classify(raw any) ReservationResult {
	var code int64
	switch v := raw.(type) {
	case int64:
		code = v
	case int:
		code = int64(v)
	case int32:
		code = int64(v)
	default:
		return ResultFailed
	}

	switch code {
	case CodeReserved:
		return ResultReserved
	case CodeInsufficientStock:
		return ResultInsufficientStock
	case CodeIdempotent:
		return ResultIdempotent
	default:
		return ResultFailed
	}
}
