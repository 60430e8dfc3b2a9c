package logging

// Field names for structured log entries.
const (
	FieldError     = "error"
	FieldPhase     = "phase"
	FieldCursor    = "cursor"
	FieldLength    = "length"
	FieldIndex     = "index"
	FieldOperation = "op"
	FieldClamped   = "clamped"

	FieldTable  = "table"
	FieldOffset = "offset"
	FieldRow    = "row"
	FieldLang   = "lang"

	FieldURL  = "url"
	FieldKey  = "key"
	FieldPath = "path"
)
