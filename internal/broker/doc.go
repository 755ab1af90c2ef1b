// Package broker is the Croquetia message broker: the single front door
// that turns producer frames into lighting commands.
//
// A Broker owns the device registry, the game state machine and the pixel
// stream scheduler. OnMessage parses a frame and routes it; state changes
// happen before OnMessage returns, so frames from one connection are
// applied in arrival order. Gateway commands run as spawned tasks bounded
// by a semaphore, and every failure lands in one error sink that logs,
// counts, and journals it. Nothing a producer sends can stop the broker.
//
// # Lifecycle
//
//	b := broker.New(broker.Deps{Gateway: firestorm.New(url), Logger: log})
//	if err := b.Start(ctx); err != nil {   // startup discovery, ingress
//	    return err
//	}
//	b.OnMessage(ctx, frame)                // from any number of connections
//	err := b.Shutdown(shutdownCtx)         // stop streaming, drain commands
package broker
