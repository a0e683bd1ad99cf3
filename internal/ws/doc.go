// Package ws adapts gorilla/websocket connections to the chat.Conn
// interface.
//
// Each frame is one message. The adapter owns keepalive: it pings the
// peer every PingInterval and extends the read deadline whenever a pong
// arrives, so a silent peer is dropped after ReadTimeout.
package ws
