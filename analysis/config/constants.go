package config

const (
	// DefaultReportFormat is the diagnostic output format used when the
	// config does not specify one.
	DefaultReportFormat = "text"
)
