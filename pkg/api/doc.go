// Package api serves the stockroom HTTP API.
//
// Every route except token issuance runs behind the actor middleware, which
// resolves the bearer token to an actor. Handlers go through the tenancy
// engine and the repository wrapper, so a denial always surfaces as 403
// with a stable reason code:
//
//	{"error": "cross_org", "message": "..."}
//
// Health probes and /metrics live on a separate router, see NewOpsRouter.
package api
