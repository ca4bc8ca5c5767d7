// Package notify fans UI refresh signals out to WebSocket clients and MQTT.
//
// The router calls a Notifier while it holds the profile lock, so every
// method returns immediately. Hub delivery is non-blocking by construction.
// MQTT publishes go through a bounded queue drained by Run; when the queue
// is full the event is dropped and counted.
//
// Usage:
//
//	n := notify.New(notify.Options{Hub: hub, MQTT: client, Topics: client.Topics()})
//	go n.Run(ctx)
//	r := router.New(router.Options{Notifier: n, ...})
package notify
