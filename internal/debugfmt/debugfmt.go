// Package debugfmt renders channel and transaction state as indented or
// single-line debug strings, for panics and debug-level log lines.
package debugfmt

import (
	"github.com/davecgh/go-spew/spew"
)

// config is the shared spew.ConfigState used throughout this package: deep,
// but without method results (Stringer implementations can themselves
// recurse into this formatter via %v, e.g. btcec public keys).
var config = spew.ConfigState{
	Indent:                  "  ",
	DisableMethods:          true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Dump renders v as a multi-line, indented debug string.
func Dump(v interface{}) string {
	return config.Sdump(v)
}

// Line renders v as a single-line debug string, suitable for a log.Debugf
// argument.
func Line(v interface{}) string {
	return config.Sprintf("%#v", v)
}
