package logparse

// windowsLevels maps the numeric <Level> of a Windows event to its display name.
// Level 0 (LogAlways) is shown as Information, matching Event Viewer.
var windowsLevels = map[string]string{
	"0": "Information",
	"1": "Critical",
	"2": "Error",
	"3": "Warning",
	"4": "Information",
	"5": "Verbose",
}

// LevelText converts a Windows event level code to its name.
// Unrecognized codes pass through unchanged.
func LevelText(code string) string {
	if name, ok := windowsLevels[code]; ok {
		return name
	}
	return code
}
