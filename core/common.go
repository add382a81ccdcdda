package core

// Operation represents a modifying backend storage operation, one of Create, Update, Delete
type Operation string

// all supported database operations
const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)
