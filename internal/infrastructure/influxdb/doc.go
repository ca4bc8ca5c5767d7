// Package influxdb records deck telemetry in InfluxDB.
//
// Two measurements are written through a batched, non-blocking write API:
//
//	deck_events    one point per routed physical event (device, controller, event)
//	deck_sessions  plugin and property inspector socket connects and disconnects
//
// Telemetry is optional. Connect returns ErrDisabled when it is switched off
// and the caller simply leaves the router's Metrics unset.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	r := router.New(router.Options{Metrics: client, ...})
//
// Batch failures are counted and passed to the SetOnError callback; they
// never reach the code that recorded the point.
package influxdb
