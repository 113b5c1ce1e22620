package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldOperation  = "operation"
	FieldError      = "error"
	FieldUserID     = "user_id"
	FieldCategoryID = "category_id"
	FieldEntryID    = "entry_id"
	FieldGoalID     = "goal_id"
	FieldCollection = "collection"
	FieldRecordID   = "record_id"
	FieldState      = "state"
	FieldDuration   = "duration_s"
	FieldPeriod     = "period"
	FieldCount      = "count"
	FieldPending    = "pending"
)

// Component names
const (
	ComponentApp      = "app"
	ComponentStorage  = "storage"
	ComponentCategory = "category"
	ComponentTimer    = "timer"
	ComponentSummary  = "summary"
	ComponentGoals    = "goals"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentTUI      = "tui"
)

// Operation names
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpSeed     = "seed"
	OpStart    = "start"
	OpSwitch   = "switch"
	OpPause    = "pause"
	OpResume   = "resume"
	OpStop     = "stop"
	OpSnapshot = "snapshot"
	OpRestore  = "restore"
	OpPublish  = "publish"
	OpSync     = "sync"
)

// Fields is a builder for structured log attributes.
type Fields map[string]any

func NewFields() Fields {
	return make(Fields)
}

func (f Fields) WithOperation(op string) Fields {
	f[FieldOperation] = op
	return f
}

func (f Fields) WithUser(userID string) Fields {
	f[FieldUserID] = userID
	return f
}

func (f Fields) WithError(err error) Fields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f Fields) WithRecord(collection, id string) Fields {
	f[FieldCollection] = collection
	f[FieldRecordID] = id
	return f
}

// ToSlice flattens the fields into slog key/value pairs.
func (f Fields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
