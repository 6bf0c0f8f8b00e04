package harvest

import "errors"

var (
	ErrUnexpectedActivity = errors.New("ledger reported unsupported kami activity")
	ErrAlreadyHarvesting  = errors.New("kami is already harvesting")
	ErrNotHarvesting      = errors.New("kami is not harvesting")
	ErrLocationMismatch   = errors.New("account is not at the target node")
	ErrOperatorMismatch   = errors.New("kami is managed by another operator")
	ErrInvalidRequest     = errors.New("invalid harvest request")
)
