// Package mqtt connects the broker to an MQTT bus.
//
// It serves two purposes:
//   - An alternate producer ingress: frames published to
//     {prefix}/source/{name} are fed to the broker exactly like WebSocket
//     frames (see Client.Listen).
//   - State publication: the game state and device list are published
//     retained to {prefix}/state/game and {prefix}/state/devices, and
//     online/offline status (with LWT) to {prefix}/system/status.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.SetLogger(log)
//
//	b := broker.New(broker.Deps{Ingress: client, Publisher: client, ...})
package mqtt
