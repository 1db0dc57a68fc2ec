// Package middleware resolves the acting user of an HTTP request.
//
// ActorMiddleware reads "Authorization: Bearer <token>", validates the token,
// loads the user and its role, and stores an *auth.ActorContext in the
// request context. Handlers fetch it with auth.FromContext and pass it to the
// repository, which authorizes through the tenancy engine.
//
//	router.Use(middleware.NewActorMiddleware(tokens, resolver, logger).Handler)
//
// Requests to the authentication routes (auth.login, auth.logout,
// auth.register, auth.token) get an actor context without an actor, which
// the tenancy engine treats as authorization-exempt.
package middleware
