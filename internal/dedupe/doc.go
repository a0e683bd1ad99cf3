// Package dedupe rejects replayed client messages. Clients may attach a
// nonce to each message; the message pipeline marks every nonce it sees
// and drops a message whose nonce is still live in the cache.
package dedupe
