package types

// TaskType identifies the provider/engine variant a search task runs against.
type TaskType string

// TaskType constants
const (
	// TaskTypeWebSearch is a general web search (organic results plus any embedded local pack)
	TaskTypeWebSearch TaskType = "WEB_SEARCH"
	// TaskTypeLocalSearch is a local-listing search
	TaskTypeLocalSearch TaskType = "LOCAL_SEARCH"
	// TaskTypeMapsSearch is a maps search
	TaskTypeMapsSearch TaskType = "MAPS_SEARCH"
	// TaskTypeCSESearch is a Google Custom Search query (organic only)
	TaskTypeCSESearch TaskType = "CSE_SEARCH"
)

// AllTaskTypes returns every supported task type.
func AllTaskTypes() []TaskType {
	return []TaskType{TaskTypeWebSearch, TaskTypeLocalSearch, TaskTypeMapsSearch, TaskTypeCSESearch}
}

// Valid reports whether t is one of the supported task types.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeWebSearch, TaskTypeLocalSearch, TaskTypeMapsSearch, TaskTypeCSESearch:
		return true
	default:
		return false
	}
}

// PageSize returns the number of results a provider returns per page for this task type.
func (t TaskType) PageSize() int {
	switch t {
	case TaskTypeLocalSearch, TaskTypeMapsSearch:
		return 20
	default:
		return 10
	}
}
