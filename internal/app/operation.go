package app

// Operation tracks a CLI run that may be recorded in the catalog.
// Operations are created in memory with ID=0. Only catalog-recorded commands
// persist them (giving them an auto-increment ID from the catalog).
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "success", "aborted" or "error"
}

// NewOperation creates a new in-memory operation.
func NewOperation(operation, parameters string) *Operation {
	return &Operation{
		Operation:  operation,
		Parameters: parameters,
		Status:     "success",
	}
}

// Persisted returns true if this operation has been saved to the catalog.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}
