package constants

// MappingStatus is the canonical outcome for rows in page_mapping_result.
type MappingStatus string

// Stable values (store these exact strings in DB).
const (
	MappingSuccess MappingStatus = "success"
	MappingError   MappingStatus = "error"
)

// PipelineState tracks how far a single document made it through the run.
type PipelineState string

const (
	StateNotStarted     PipelineState = "NOT_STARTED"
	StateLayoutDone     PipelineState = "LAYOUT_DONE"
	StateConditionsDone PipelineState = "CONDITIONS_DONE"
	StateMappingDone    PipelineState = "MAPPING_DONE"
)

// PipelineOutcome is the terminal verdict for a MAPPING_DONE run.
type PipelineOutcome string

const (
	OutcomeSuccess PipelineOutcome = "success" // every attempted page mapped
	OutcomePartial PipelineOutcome = "partial" // at least one page recorded an error
)
