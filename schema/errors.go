package schema

import "fmt"

// ErrorKind classifies every failure the engine can surface. All kinds are
// recoverable at the reconciliation boundary: the outer transaction rolls back.
type ErrorKind string

const (
	EnumRedefined      ErrorKind = "ENUM_REDEFINED"
	EnumDuplicateValues ErrorKind = "ENUM_DUPLICATE_VALUES"
	EnumInUse          ErrorKind = "ENUM_IN_USE"

	RelationTargetMissing ErrorKind = "RELATION_TARGET_MISSING"
	RelationColumnMissing ErrorKind = "RELATION_COLUMN_MISSING"
	RelationKindInvalid   ErrorKind = "RELATION_KIND_INVALID"
	RelationTypeMismatch  ErrorKind = "RELATION_TYPE_MISMATCH"
	RelationArrayMismatch ErrorKind = "RELATION_ARRAY_MISMATCH"
	FkActionInvalid       ErrorKind = "FK_ACTION_INVALID"
	CyclicRelations       ErrorKind = "CYCLIC_RELATIONS"
	DuplicateColumnName   ErrorKind = "DUPLICATE_COLUMN_NAME"

	DefaultInvalid ErrorKind = "DEFAULT_INVALID"
	CheckSyntax    ErrorKind = "CHECK_SYNTAX"

	TypeUnknown            ErrorKind = "TYPE_UNKNOWN"
	TypeChangeBlocked      ErrorKind = "TYPE_CHANGE_BLOCKED"
	AddNotNullBlocked      ErrorKind = "ADD_NOT_NULL_BLOCKED"
	AddUniqueBlocked       ErrorKind = "ADD_UNIQUE_BLOCKED"
	DropColumnBlocked      ErrorKind = "DROP_COLUMN_BLOCKED"
	DropTableBlocked       ErrorKind = "DROP_TABLE_BLOCKED"
	PrimaryKeyMoveBlocked  ErrorKind = "PRIMARY_KEY_MOVE_BLOCKED"
	MultiplePrimaryKeys    ErrorKind = "MULTIPLE_PRIMARY_KEYS"

	IndexColumnMissing ErrorKind = "INDEX_COLUMN_MISSING"

	DatabaseError ErrorKind = "DATABASE_ERROR"
)

// Error is a classified engine error with schema context.
type Error struct {
	Kind    ErrorKind
	Table   string
	Column  string
	Enum    string
	Message string
}

func (e *Error) Error() string {
	switch {
	case e.Table != "" && e.Column != "":
		return fmt.Sprintf("%s: %s.%s: %s", e.Kind, e.Table, e.Column, e.Message)
	case e.Table != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Table, e.Message)
	case e.Enum != "":
		return fmt.Sprintf("%s: enum %s: %s", e.Kind, e.Enum, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Errf builds a table/column scoped Error.
func Errf(kind ErrorKind, table, column, format string, args ...any) *Error {
	return &Error{Kind: kind, Table: table, Column: column, Message: fmt.Sprintf(format, args...)}
}

// EnumErrf builds an enum scoped Error.
func EnumErrf(kind ErrorKind, enum, format string, args ...any) *Error {
	return &Error{Kind: kind, Enum: enum, Message: fmt.Sprintf(format, args...)}
}

// DBErr wraps an underlying database failure.
func DBErr(table string, err error) *Error {
	return &Error{Kind: DatabaseError, Table: table, Message: err.Error()}
}
