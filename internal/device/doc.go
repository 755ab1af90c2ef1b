// Package device provides the Device Registry: the broker's view of the
// lighting controllers Firestorm has discovered.
//
// The registry is a cache that is only ever replaced wholesale. Each
// Refresh asks the gateway for the full controller list and swaps it in;
// there is no incremental add or remove. Refreshes are serialized, so the
// set always reflects the most recently completed discovery.
//
// # Usage
//
//	registry := device.NewRegistry(firestormClient)
//	registry.SetLogger(log)
//
//	devices, err := registry.Refresh(ctx)
//	if err != nil {
//	    return err
//	}
//
//	// Every command targets the whole current set.
//	err = gateway.SetVariables(ctx, vars, registry.CurrentTargets())
package device
