package store

import "errors"

// ErrCorruptRow is returned when a stored amount or address cannot be parsed.
var ErrCorruptRow = errors.New("corrupt row")
