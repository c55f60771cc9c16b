package invest

import "errors"

var (
	// ErrFlowInProgress is returned when the investor already has a flow running
	ErrFlowInProgress = errors.New("an investment is already in progress")

	// ErrInvalidInvestor is returned when the investor address is malformed
	ErrInvalidInvestor = errors.New("invalid investor address")
)
