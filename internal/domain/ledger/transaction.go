package ledger

import "fmt"

// Transaction is a decoded transaction envelope.
type Transaction struct {
	Hash       string
	Source     string
	FeeBump    bool // operations belong to the inner transaction
	Operations []Operation
}

// DecodeError reports a malformed envelope. It is never fatal for a ledger.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode transaction envelope: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
