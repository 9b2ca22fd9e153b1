package installation

import (
	"database/sql"
	"time"
)

// Task is a single checklist item on an installation.
type Task struct {
	ID             int64
	InstallationID int64
	Title          string
	Status         string // e.g. "PENDING", "OK", "NOT_NEEDED"
}

// Installation is a checklist-like entity: a client installation with a hard
// (contractual) date, a soft (planned) date and child tasks.
type Installation struct {
	ID         int64
	ClientName string
	HardDate   sql.NullTime
	SoftDate   sql.NullTime
	Tasks      []Task
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// EffectiveDate is the hard date if present, else the soft date. The second
// return value is false when the installation carries neither.
func (i *Installation) EffectiveDate() (time.Time, bool) {
	if i.HardDate.Valid {
		return i.HardDate.Time, true
	}
	if i.SoftDate.Valid {
		return i.SoftDate.Time, true
	}
	return time.Time{}, false
}
