// Package ws provides WebSocket handling for live editing sessions.
//
// Every connection shares one Hub. The hub fans store changes and preview
// events out to all clients, so several tabs editing the same workspace stay
// in sync.
//
// Message Types (Client → Server):
//   - update: Write content through the active buffer of a kind
//   - select: Make a buffer active
//   - rename: Change a buffer's display name
//   - create: Append a buffer
//   - delete: Remove a buffer (confirmation is the client's job)
//   - viewport: Change view mode and/or full screen
//   - ping: Keep-alive ping
//
// Message Types (Server → Client):
//   - system: Welcome with the client id
//   - workspace: File list read model after each store change
//   - frame: Preview rebuilt (seq, fingerprint, handle id)
//   - viewport: Presentation state changed
//   - error: Malformed request
//   - pong: Keep-alive reply
//
// Example Usage:
//
//	hub := ws.NewHub(store, renderer, log)
//	hub.Start()
//	router.GET("/stream", ws.NewHandler(hub).HandleConnection)
package ws
