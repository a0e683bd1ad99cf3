// Package chat is the real-time core of the gateway: it keeps track of who
// is online, fans messages out to live connections and drives each client
// connection through its lifecycle.
//
// # Components
//
//   - Registry: one Channel per active conversation, created lazily.
//     Publishing never blocks; each Subscription buffers a bounded backlog
//     and a slow subscriber loses its oldest events first.
//   - Presence: per-room connection counts. An account is online while at
//     least one of its connections is open in that room.
//   - Pipeline: persists an inbound message, then publishes it. A message
//     that could not be stored is never published.
//   - SessionResolver: maps an unordered pair of friends to a single private
//     session.
//   - Handler: serves one Conn. It subscribes, marks presence, then runs an
//     inbound and an outbound loop until either ends.
//
// # Conversations
//
// A Key names either a room (RoomKey) or a private session (SessionKey).
// Room presence changes publish an online_list event carrying the sorted
// display names of the room's online members.
//
//	reg := chat.NewRegistry(cfg.SubscriberBacklog, logger)
//	pres := chat.NewPresence()
//	pipe := chat.NewPipeline(store, reg, pres, chat.PipelineConfig{}, logger)
//	h := chat.NewHandler(reg, pres, pipe, logger)
//	err := h.Serve(ctx, conn, identity, chat.RoomKey(7))
//
// # Delivery
//
// Delivery is at-most-once to connections subscribed at publish time.
// Every subscriber of a conversation observes events in the same order.
// There is no offline queue; history is read from the store.
package chat
