// Package klog centralises the commonlog wiring shared by cmd/knight's
// --debug trace and cmd/knight-lsp's diagnostics, grounded on how
// server/lsp.go in the teacher repo pulls in commonlog together with its
// simple backend.
package klog

import (
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

// Name is the logger name every binary in this module logs under.
const Name = "knight"

// Init wires up the simple commonlog backend at the given verbosity
// (0 = critical only, higher numbers progressively more verbose) and
// returns the interpreter's logger.
func Init(verbosity int) commonlog.Logger {
	commonlog.Initialize(verbosity, "")
	return commonlog.GetLogger(Name)
}
