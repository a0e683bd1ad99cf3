// Package auth provides authentication for the chat gateway.
//
// # Passwords
//
// Account passwords are hashed with argon2id (golang.org/x/crypto/argon2)
// and stored in the PHC string format:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>
//
// Verification re-derives the key with the stored parameters and compares
// in constant time.
//
// # JWT Tokens
//
// Login issues an HS256 JWT carrying sub (the account), iat and exp. The
// default lifetime is one hour. JWTVerifier both issues and verifies
// tokens; the secret must be at least MinSecretLength bytes.
//
// # HTTP Middleware
//
// Middleware is echo middleware that accepts a token from the
// Authorization: Bearer header and, when AllowQueryToken is set, from the
// token query parameter used by WebSocket clients. The verified Identity
// is stored on both the echo context and the request context.
//
// # Context Helpers
//
//	id, ok := auth.FromContext(ctx)       // from a request context
//	id, ok := auth.IdentityFrom(c)        // from an echo.Context
//	id := auth.MustFromContext(ctx)       // panics when absent
package auth
