// Package audit records security-relevant query events as structured JSON so
// they can be filtered out of the main log stream by a SIEM.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventStatementRejected is logged when generated SQL is refused before execution.
	EventStatementRejected SecurityEventType = "statement_rejected"
	// EventQueryExecution is logged for each statement that ran (high volume, debug level).
	EventQueryExecution SecurityEventType = "query_execution"
)

// SecurityEvent is one auditable event.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	QueryID   uuid.UUID         `json:"query_id"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning
}

// RejectionDetails describes a statement that was refused.
type RejectionDetails struct {
	SQL    string `json:"sql"`
	Reason string `json:"reason"`
}

// ExecutionDetails describes a statement that ran.
type ExecutionDetails struct {
	SQL        string `json:"sql"`
	Rows       int    `json:"rows"`
	DurationMs int64  `json:"duration_ms"`
}

type clientIPKey struct{}

// WithClientIP attaches the caller's address to ctx for later events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFromContext returns the address stored by WithClientIP, or "".
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// SecurityAuditor logs security events under the "security_audit" logger name.
// Callers pass SQL that has already been sanitized.
type SecurityAuditor struct {
	logger *zap.Logger
}

func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogStatementRejected records SQL refused before it reached the database.
func (a *SecurityAuditor) LogStatementRejected(ctx context.Context, sanitizedSQL, reason string) uuid.UUID {
	event := a.event(ctx, EventStatementRejected, "warning", RejectionDetails{SQL: sanitizedSQL, Reason: reason})
	a.logger.Warn("Statement rejected",
		zap.String("event_json", marshal(event)),
		zap.String("query_id", event.QueryID.String()),
		zap.String("reason", reason),
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", event.Severity))
	return event.QueryID
}

// LogQueryExecution records a statement that ran. It is a no-op unless the
// logger is at debug level.
func (a *SecurityAuditor) LogQueryExecution(ctx context.Context, sanitizedSQL string, rows int, d time.Duration) {
	if !a.logger.Core().Enabled(zap.DebugLevel) {
		return
	}
	event := a.event(ctx, EventQueryExecution, "info", ExecutionDetails{
		SQL:        sanitizedSQL,
		Rows:       rows,
		DurationMs: d.Milliseconds(),
	})
	a.logger.Debug("Query executed",
		zap.String("event_json", marshal(event)),
		zap.String("query_id", event.QueryID.String()),
		zap.Int("rows", rows),
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", event.Severity))
}

func (a *SecurityAuditor) event(ctx context.Context, t SecurityEventType, severity string, details any) SecurityEvent {
	return SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: t,
		QueryID:   uuid.New(),
		ClientIP:  ClientIPFromContext(ctx),
		Details:   details,
		Severity:  severity,
	}
}

func marshal(event SecurityEvent) string {
	// Known types only; marshaling cannot fail.
	data, _ := json.Marshal(event)
	return string(data)
}
