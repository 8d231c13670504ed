package audit

import (
	"encoding/json"
	"time"
)

// Action categorizes the mutation an entry records.
type Action string

const (
	ActionCreate       Action = "create"
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
	ActionUpdateRole   Action = "update_role"
	ActionUpdateStatus Action = "update_status"
	ActionRemoveMember Action = "remove_member"
)

// FieldChange is one field's before/after pair. Old is absent for
// insert diffs.
type FieldChange struct {
	Old interface{} `json:"old,omitempty"`
	New interface{} `json:"new"`
}

// Changes is the field-level diff of one mutation. For updates it
// holds only fields whose values actually differ; for inserts it holds
// every recorded field with Old absent.
type Changes map[string]FieldChange

// Entry is one immutable audit record. ChurchID is nil for
// church-agnostic mutations such as super-admin church management.
type Entry struct {
	ID        int64     `json:"id"`
	Action    Action    `json:"action"`
	TableName string    `json:"table_name"`
	RecordID  string    `json:"record_id"`
	ActorID   string    `json:"actor_id"`
	ChurchID  *string   `json:"church_id,omitempty"`
	Changes   Changes   `json:"changes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MarshalChanges serializes the diff for storage.
func (e *Entry) MarshalChanges() ([]byte, error) {
	if e.Changes == nil {
		return nil, nil
	}
	return json.Marshal(e.Changes)
}

// SearchFilter narrows audit queries for the log viewers. Zero values
// mean "no constraint".
type SearchFilter struct {
	ChurchID  *string
	ActorID   string
	TableName string
	RecordID  string
	Actions   []Action
	Since     *time.Time
	Until     *time.Time
	Limit     int
	Offset    int
}
