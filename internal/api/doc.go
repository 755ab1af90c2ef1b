// Package api implements the broker's inbound HTTP surface.
//
// This package provides:
//   - The producer WebSocket endpoint: each text or binary frame is one
//     JSON message handed to the broker's dispatcher in arrival order
//   - POST /api/v1/messages, an HTTP ingress for single messages
//   - Read-only introspection: health, metrics, devices, game, stream,
//     journal
//   - Middleware stack (request ID, logging, recovery, body limit)
//
// # Architecture
//
// Producers (colour pickers, dragon staffs, the croquet scorer) connect
// over WebSocket and push frames. The server never writes application
// data back to producers; it only pings to detect dead connections.
// Everything behind the socket is the broker's business.
//
// # Lifecycle
//
//	server, err := api.New(deps)
//	if err := server.Start(ctx); err != nil {
//	    return err // listener could not bind
//	}
//	defer server.Close()
package api
