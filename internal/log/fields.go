package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldOperation   = "operation"
	FieldError       = "error"
	FieldSheet       = "sheet"
	FieldSpreadsheet = "spreadsheet_id"
	FieldSociety     = "society"
	FieldCostCode    = "cost_code"
	FieldRow         = "row"
	FieldEntries     = "entries"
	FieldDuration    = "duration_ms"
	FieldFailures    = "consecutive_failures"
	FieldMessageID   = "message_id"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentChecker   = "checker"
	ComponentExtractor = "extractor"
	ComponentDiffer    = "differ"
	ComponentSheets    = "sheets"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentNotify    = "notify"
	ComponentFetcher   = "fetcher"
	ComponentWorker    = "worker"
)

// Operations defines standard operation names
const (
	OpCheck     = "check"
	OpExtract   = "extract"
	OpDiff      = "diff"
	OpFetch     = "fetch"
	OpConvert   = "convert"
	OpUpload    = "upload"
	OpHighlight = "highlight"
	OpNotify    = "notify"
	OpSave      = "save"
	OpStartup   = "startup"
	OpShutdown  = "shutdown"
)
