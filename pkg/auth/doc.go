// Package auth resolves who is acting on behalf of a request or job.
//
// # Actors
//
// An Actor is a user together with its role and organization. Only actors
// holding the super_admin system role may exist without an organization;
// Resolver enforces this when it builds an actor from the users table.
//
// # Actor Context
//
// ActorContext is resolved once per request by middleware and threaded
// through context.Context. The authorization engine receives it explicitly:
//
//	ac := auth.NewRequestContext(actor, "items.create")
//	ctx = auth.WithActorContext(ctx, ac)
//	...
//	ac = auth.FromContext(ctx)
//
// Console execution (CLI, cron jobs) uses NewConsoleContext, which has no
// actor and skips authorization. So do the authentication routes, which run
// before an actor exists.
//
// # API Tokens
//
// Tokens have the form stk_<base64url(32 random bytes)> and only their
// SHA256 hash is stored:
//
//	token, plaintext, err := tokens.CreateToken(ctx, user.ID, "scanner", nil)
//	apiToken, err := tokens.ValidateToken(ctx, plaintext)
package auth
