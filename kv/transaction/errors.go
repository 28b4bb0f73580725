package transaction

import "fmt"

// ErrInvalidReqRange reports a scan request whose range is not fully
// covered by the snapshot it was issued against.
type ErrInvalidReqRange struct {
	Start      []byte
	End        []byte
	LowerBound []byte
	UpperBound []byte
}

func (e *ErrInvalidReqRange) Error() string {
	return fmt.Sprintf("request range [%q, %q) exceeds snapshot bounds [%q, %q)",
		e.Start, e.End, e.LowerBound, e.UpperBound)
}
