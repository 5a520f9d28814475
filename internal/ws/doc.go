// Package ws implements the WebSocket hub for wellsteerd.
//
// Hub manages a set of connected clients and broadcasts the current steering
// snapshot and link state to all of them on a configurable interval.
//
// New(coord, link, interval) creates a Hub.
// Hub.Run(ctx) starts the broadcast ticker, blocks until ctx is cancelled,
// then closes all active connections.
// Hub.ServeHTTP upgrades an HTTP connection to WebSocket, sends the current
// snapshot immediately on connect, then streams updates on each tick.
//
// Message format sent to clients:
//
//	{
//	  "event": "snapshot",
//	  "state": "receiving",
//	  "data":  { /* same schema as GET /api/v1/snapshot */ }
//	}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. The WebSocket endpoint is mounted at /ws/stream by the daemon.
package ws
