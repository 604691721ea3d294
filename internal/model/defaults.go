package model

// Shared defaults used by the converter, the CLI and the TUI.
const (
	// DefaultProgressInterval is the row stride between progress events.
	DefaultProgressInterval = 500

	// FailedCount is the per-file count recorded for a file that failed.
	FailedCount = -1

	// OutputExt is the extension of every converted file.
	OutputExt = ".csv"
)

// BaseFields is the ordered list of columns present in every row.
// Every per-file schema starts with exactly these columns.
var BaseFields = []string{
	"EventID",
	"EventIDQualifiers",
	"Version",
	"TimeCreated",
	"Channel",
	"Computer",
	"Level",
	"LevelText",
	"Task",
	"Opcode",
	"Keywords",
	"Provider",
	"ProviderGUID",
	"EventRecordID",
	"Correlation_ActivityID",
	"Correlation_RelatedActivityID",
	"ProcessID",
	"ThreadID",
	"UserID",
	"EventData",
	"UserData_Raw",
	"Binary",
}
