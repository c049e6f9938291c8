package model

import "errors"

// Event log errors.
var (
	ErrMissingBlockNumber    = errors.New("log missing block number")
	ErrMissingLogIndex       = errors.New("log missing log index")
	ErrAlreadySynced         = errors.New("log already synced")
	ErrInvalidEventSignature = errors.New("invalid event signature")
	ErrMalformedPayload      = errors.New("malformed event payload")
	ErrReserveUnderflow      = errors.New("reserve underflow")
)
