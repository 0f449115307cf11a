package kintai

import (
	"time"

	"github.com/tidwall/buntdb"
)

// AdminAction is an append-only audit entry. The core only ever writes these;
// nothing reads them back for decisions.
type AdminAction struct {
	Actor     PersonID  `json:"actor"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

type AuditLog interface {
	Append(group GroupID, entry AdminAction) error
}

func NewAuditLog(db *buntdb.DB) AuditLog {
	return &auditLog{db: db}
}

type auditLog struct {
	db *buntdb.DB
}

func auditKey(group GroupID) string {
	return "adminlog:" + string(group)
}

func (l *auditLog) Append(group GroupID, entry AdminAction) error {
	return l.db.Update(func(tx *buntdb.Tx) error {
		var entries []AdminAction
		if err := getJSON(tx, auditKey(group), &entries); err != nil {
			return err
		}
		entries = append(entries, entry)
		return setJSON(tx, auditKey(group), entries)
	})
}
