// Package audit records security-relevant events: authorization denials,
// data mutations, and public identifier allocation failures.
//
// # Usage
//
//	event := audit.NewEvent(ctx, audit.EventTypeAuthzAccessDenied, audit.EventStatusDenied)
//	event.Resource = "items"
//	event.Reason = "cross_org"
//	_ = logger.Log(ctx, event)
//
// DBLogger persists events to the audit_logs table and supports filtered
// search. RecordingLogger keeps events in memory for tests.
package audit
