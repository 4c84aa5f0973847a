package logger

// Output controls what categories of information are shown at each verbosity level.
//
// Unlike log levels (which filter by severity), output categories control
// WHAT types of information are displayed regardless of severity.

// OutputCategory defines a category of output that can be enabled/disabled
type OutputCategory int

const (
	// Level 0 (default) - Always shown
	OutputResults OutputCategory = iota // Query results, command output
	OutputErrors                        // Errors with hints

	// Level 1 (-v)
	OutputStartup   // Banner, store diagnostics, listen address
	OutputSessions  // Session connect/disconnect
	OutputQueryInfo // One line per completed query

	// Level 2 (-vv)
	OutputFrames // One line per inbound frame
	OutputTiming // Durations of store round trips
	OutputConfig // Config values loaded/applied

	// Level 3 (-vvv)
	OutputStoreCalls  // Individual store operations
	OutputMailboxFlow // Enqueue/dequeue of actor messages

	// Level 4 (-vvvv)
	OutputFramePayload // Full frame payloads
	OutputResultDump   // Full decoded result sets
)

// categoryLevels maps each output category to its minimum verbosity level
var categoryLevels = map[OutputCategory]int{
	OutputResults: VerbosityUser,
	OutputErrors:  VerbosityUser,

	OutputStartup:   VerbosityInfo,
	OutputSessions:  VerbosityInfo,
	OutputQueryInfo: VerbosityInfo,

	OutputFrames: VerbosityDebug,
	OutputTiming: VerbosityDebug,
	OutputConfig: VerbosityDebug,

	OutputStoreCalls:  VerbosityTrace,
	OutputMailboxFlow: VerbosityTrace,

	OutputFramePayload: VerbosityAll,
	OutputResultDump:   VerbosityAll,
}

// ShouldOutput returns true if the given category should be shown at the given verbosity
func ShouldOutput(verbosity int, category OutputCategory) bool {
	minLevel, ok := categoryLevels[category]
	if !ok {
		// Unknown category, default to highest verbosity required
		return verbosity >= VerbosityAll
	}
	return verbosity >= minLevel
}

var categoryNames = map[OutputCategory]string{
	OutputResults:      "results",
	OutputErrors:       "errors",
	OutputStartup:      "startup",
	OutputSessions:     "sessions",
	OutputQueryInfo:    "query-info",
	OutputFrames:       "frames",
	OutputTiming:       "timing",
	OutputConfig:       "config",
	OutputStoreCalls:   "store-calls",
	OutputMailboxFlow:  "mailbox",
	OutputFramePayload: "frame-payload",
	OutputResultDump:   "result-dump",
}

// CategoryName returns the human-readable name for an output category
func CategoryName(category OutputCategory) string {
	if name, ok := categoryNames[category]; ok {
		return name
	}
	return "unknown"
}
