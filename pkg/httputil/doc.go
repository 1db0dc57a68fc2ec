// Package httputil provides HTTP helpers shared by the API handlers.
//
// Error responses are JSON objects with an "error" field. Authorization
// failures also carry a "message":
//
//	{"error": "cross_org", "message": "You cannot access resources from another organization"}
//
// The middleware here is transport-level only: request IDs, request
// logging, panic recovery and body size limits. Actor resolution lives in
// pkg/middleware.
package httputil
