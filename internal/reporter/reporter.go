package reporter

import "github.com/ethanolivertroy/hulud-checker/internal/models"

// Reporter is the interface for output formatters
type Reporter interface {
	// Report generates output for the given scan result
	Report(result *models.ScanResult) ([]byte, error)
}

// Get returns a reporter for the specified format. Plain output carries no
// color escape codes.
func Get(format string, plain bool) Reporter {
	switch format {
	case models.FormatJSON:
		return &JSONReporter{}
	case models.FormatSARIF:
		return &SARIFReporter{}
	default:
		return &TerminalReporter{Plain: plain}
	}
}
