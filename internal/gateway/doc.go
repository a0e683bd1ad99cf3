// Package gateway assembles and runs the chat-gateway server.
//
// # Overview
//
// New opens the store and builds the chat core around it:
//
//	store ─┬─ Pipeline ── Registry ── Subscriptions
//	       ├─ SessionResolver
//	       └─ api.Server ── chat.Handler ── ws.Conn
//
// Run binds the listener, serves HTTP and sweeps idle conversation
// channels until its context is canceled.
//
// # Listeners
//
// By default the gateway listens on server.http_addr. With tailscale
// enabled it joins the tailnet through tsnet and listens on port 80 of the
// node instead; the auth key comes from tailscale.auth_key or TS_AUTHKEY.
//
// # Shutdown
//
// Shutdown runs in this order:
//
//  1. The HTTP server stops accepting requests.
//  2. Live WebSocket connections are canceled and drained. Each one
//     publishes its departure before it finishes.
//  3. The registry closes every remaining channel.
//  4. The tailscale node, the store and the dedupe cache are closed.
//
// Errors from each step are collected and returned together.
package gateway
