package items

import "errors"

var (
	ErrNotFound     = errors.New("item not found")
	ErrForbidden    = errors.New("only the owner may modify this item")
	ErrInvalidInput = errors.New("invalid item")
)
