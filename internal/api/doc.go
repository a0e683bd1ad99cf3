// Package api is the HTTP surface of the chat gateway, built on echo.
//
// # Routes
//
//	GET    /                         liveness text
//	GET    /health                   channel, subscriber and connection counts
//	POST   /register                 {account, password, username}
//	POST   /login                    {account, password} -> {username, token}
//	GET    /protected                token check
//	POST   /chatrooms                {name}; the creator joins automatically
//	GET    /chatrooms                rooms the caller belongs to
//	POST   /chatrooms/join           {chatroom_id}
//	POST   /chatrooms/leave          {chatroom_id}
//	GET    /chatrooms/:id/online     display names of online members
//	GET    /chatrooms/:id/messages   history, ?limit= and ?before=
//	POST   /friends                  {account}
//	GET    /friends
//	DELETE /friends/:account
//	POST   /sessions                 {peer} -> {session_id}
//	GET    /sessions/:id/messages    history
//	GET    /ws/rooms/:id             WebSocket, room members only
//	GET    /ws/sessions/:id          WebSocket, session participants only
//
// Everything except /, /health, /register and /login needs a bearer token.
// The WebSocket routes also accept the token as ?token=.
//
// # Errors
//
// Failures are JSON {"message": "..."} with a status chosen by httpError:
// 400 for bad input, 401 for a missing or invalid token, 403 when the
// caller is not entitled to a conversation, 404 for unknown rooms or
// sessions, 409 for a taken account and 503 when storage is unavailable.
package api
