// Package deck connects physical decks to the router.
//
// Drivers announce devices and report input either over MQTT or through a
// plugin socket. Every message for one device is handled, in arrival
// order, by a worker goroutine owned by that device, so a multi-action
// sweep on one deck never stalls input from another and never delays the
// MQTT client's delivery goroutine.
//
// The Bridge is also the router's Driver: images and clears are published
// to the device's command topic, or sent to the plugin that registered the
// device.
//
//	opendeck/device/{id}/register    RegisterMessage
//	opendeck/device/{id}/deregister  empty or {"plugin": ...}
//	opendeck/device/{id}/event       EventMessage
//	opendeck/device/{id}/command     CommandMessage
package deck
