package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementMessages = "croquetia_messages"
	MeasurementHue      = "croquetia_hue"
	MeasurementFrames   = "croquetia_frames"
	MeasurementFailures = "croquetia_failures"
)

// Message counts one accepted producer message.
func (c *Client) Message(source string) {
	c.WritePoint(MeasurementMessages,
		map[string]string{"source": source},
		map[string]any{"count": int64(1)})
}

// Hue records a hue sent to the lighting controllers. origin is the
// producer source or game event that caused it.
func (c *Client) Hue(hue float64, origin string) {
	c.WritePoint(MeasurementHue,
		map[string]string{"origin": origin},
		map[string]any{"hue": hue})
}

// Frame records one streamed pixel frame.
func (c *Client) Frame(values int, generation uint64) {
	c.WritePoint(MeasurementFrames, nil, map[string]any{
		"values":     int64(values),
		"generation": generation,
	})
}

// Failure counts one failed gateway operation.
func (c *Client) Failure(op string) {
	c.WritePoint(MeasurementFailures,
		map[string]string{"op": op},
		map[string]any{"count": int64(1)})
}

// WritePoint queues a point stamped now. It is dropped when the client
// is not connected.
//
// Example:
//
//	client.WritePoint("croquetia_sessions",
//	    map[string]string{"venue": "lawn-1"},
//	    map[string]any{"duration_s": 912.0})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime queues a point with an explicit timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
