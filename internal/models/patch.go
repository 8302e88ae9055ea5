package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// OptString is a patch field with three states: absent (Set=false), null
// (Set=true, Value=nil) and value. Absent fields leave the row untouched.
type OptString struct {
	Set   bool
	Value *string
}

func String(v string) OptString {
	return OptString{Set: true, Value: &v}
}

func NullString() OptString {
	return OptString{Set: true}
}

// UnmarshalJSON is only invoked when the key is present in the payload, so
// presence maps onto Set and JSON null onto a nil Value.
func (o *OptString) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(b, []byte("null")) {
		o.Value = nil
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

// OptTime is the time-valued counterpart of OptString.
type OptTime struct {
	Set   bool
	Value *time.Time
}

func Time(v time.Time) OptTime {
	return OptTime{Set: true, Value: &v}
}

func NullTime() OptTime {
	return OptTime{Set: true}
}

func (o *OptTime) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(b, []byte("null")) {
		o.Value = nil
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

// ServicePatch is a partial update for an open service. Status cannot be
// patched to null; the other fields distinguish "leave unchanged" from
// "set to null".
type ServicePatch struct {
	Status       *Status   `json:"status,omitempty"`
	MechanicName OptString `json:"mechanic_name,omitzero"`
	Description  OptString `json:"description,omitzero"`
	StartedAt    OptTime   `json:"started_at,omitzero"`
	FinishedAt   OptTime   `json:"finished_at,omitzero"`
}

// Empty reports whether the patch would change nothing.
func (p ServicePatch) Empty() bool {
	return p.Status == nil && !p.MechanicName.Set && !p.Description.Set &&
		!p.StartedAt.Set && !p.FinishedAt.Set
}
