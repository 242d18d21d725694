package observe

import "errors"

// Configuration errors.
var (
	// ErrMissingServiceName indicates Config.ServiceName is empty.
	ErrMissingServiceName = errors.New("observe: service name is required")

	// ErrInvalidSamplePct indicates Tracing.SamplePct is not in [0.0, 1.0].
	ErrInvalidSamplePct = errors.New("observe: sample percentage must be between 0.0 and 1.0")

	// ErrInvalidTracingExporter indicates an unknown tracing exporter name.
	ErrInvalidTracingExporter = errors.New("observe: invalid tracing exporter")

	// ErrInvalidMetricsExporter indicates an unknown metrics exporter name.
	ErrInvalidMetricsExporter = errors.New("observe: invalid metrics exporter")

	// ErrInvalidLogLevel indicates an unknown log level.
	ErrInvalidLogLevel = errors.New("observe: invalid log level")
)

// ErrMissingToolName indicates ToolMeta.Name is empty.
var ErrMissingToolName = errors.New("observe: tool name is required")

// RedactedFields lists field keys whose values are never written to logs.
// Bearer credentials and API keys travel under these names.
var RedactedFields = []string{
	"authorization",
	"api_key",
	"apiKey",
	"bearer",
	"credential",
	"input",
	"inputs",
	"password",
	"secret",
	"token",
}
