package models

import (
	"time"

	"github.com/google/uuid"
)

// Actor types for audit events.
const (
	ActorSystem = "system"
	ActorUser   = "user"
)

// Audit verbs written by the core.
const (
	VerbMatchRecorded    = "match.recorded"
	VerbExceptionOpened  = "exception.opened"
	VerbExceptionIgnored = "exception.ignored"
	VerbActionExecuted   = "action.executed"
	VerbActionFailed     = "action.failed"
	VerbRunCompleted     = "run.completed"
)

// GenesisHash is the prev hash of the first event in a company's chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// AuditEvent is one link in a company's hash chain. Hash covers the payload
// bytes concatenated with PrevHash. Payload is a text column, not a JSON
// column: jsonb stores re-serialize on read (their own key order and spacing),
// which would change the bytes Verify rehashes. The unique index on
// (company, prev_hash) rejects a second writer that computed against a stale
// chain head.
type AuditEvent struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID  uuid.UUID `gorm:"index;uniqueIndex:idx_audit_prev" json:"company_id"`
	Seq        int64     `gorm:"index" json:"seq"`
	ActorType  string    `json:"actor_type"`
	ActorID    string    `json:"actor_id"`
	Verb       string    `gorm:"index" json:"verb"`
	EntityType string    `gorm:"index" json:"entity_type"`
	EntityID   string    `gorm:"index" json:"entity_id"`
	Payload    string    `gorm:"type:text" json:"payload"`
	PrevHash   string    `gorm:"uniqueIndex:idx_audit_prev" json:"prev_hash"`
	Hash       string    `json:"hash"`
	CreatedAt  time.Time `json:"created_at"`
}
