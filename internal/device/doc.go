// Package device provides the table of connected control-surface devices.
//
// Records are transient: a device appears when its driver registers it and
// disappears on deregistration. Nothing here is persisted; per-device
// configuration lives in the profile package.
//
// # Namespaces
//
// Device ids start with a two-character namespace naming the driver
// family, for example "sd" for Stream Deck hardware. A driver plugin
// claims a namespace once; afterwards only that plugin may register or
// deregister devices in it. Drivers built into the host register with an
// empty plugin id and bypass the check.
//
// # Usage
//
//	reg := device.NewRegistry()
//	reg.ClaimNamespace("sd", "com.example.streamdeck")
//	err := reg.Register("com.example.streamdeck", device.Record{
//	    ID: "sd-ABC", Name: "Stream Deck", Rows: 3, Columns: 5, Encoders: 2,
//	})
package device
