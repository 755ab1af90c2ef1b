// Package influxdb records broker telemetry in InfluxDB.
//
// *Client satisfies the broker's Telemetry interface: every accepted
// message, hue change, streamed frame and gateway failure becomes a point
// in the configured bucket. Writes use the non-blocking batched write API
// of influxdb-client-go v2, so the broker never waits on the database.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.SetOnError(func(err error) { log.Warn("influx write failed", "error", err) })
//
// Batching follows batch_size and flush_interval from the config file.
package influxdb
