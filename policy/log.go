package policy

import "github.com/btcsuite/btclog"

// log is the package-level subsystem logger. It defaults to disabled so
// importing this package in a test has no logging side effects; callers
// wire in a real logger with UseLogger.
var log btclog.Logger = btclog.Disabled

// UseLogger sets the subsystem logger used by this package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
