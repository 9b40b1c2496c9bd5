package global

import "time"

var (
	Version = ""
)

// Configuration holds the parameters that are shared across submodules.
type Configuration struct {
	Directory string
	LogLevel  string

	Otel struct {
		Tracing     bool
		ServiceName string
	}

	Flash struct {
		Backend        string
		PartitionsFile string
		TwoPart        bool
		FormatIfFailed bool
	}

	Bench struct {
		ChunkSize  int
		ChunkCount int
	}

	WiFi struct {
		Backend      string
		Interface    string
		SSID         string
		Password     string //nolint:gosec //#gosec G117 -- FP, we don't marshal this object into JSON
		Timeout      time.Duration
		PollInterval time.Duration
	}
}

var (
	Conf Configuration
)
