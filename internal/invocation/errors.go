package invocation

import "errors"

var (
	errBadMagic        = errors.New("invocation log: bad magic")
	errVersionMismatch = errors.New("invocation log: unsupported format version")
)
