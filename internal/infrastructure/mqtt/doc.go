// Package mqtt provides MQTT client connectivity for OpenDeck Core.
//
// The broker connects the core to out-of-process device drivers and to
// any UI that prefers MQTT over the WebSocket notification stream:
//
//	device driver ↔ MQTT broker ↔ OpenDeck Core ↔ MQTT broker ↔ UI
//
// This package manages:
//   - Connection with auto-reconnect and restored subscriptions
//   - Publishing with QoS and payload size limits
//   - Wildcard subscriptions with panic-safe handlers
//   - A retained status topic with a Last Will for crash detection
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.AllDeviceEvents(), 1,
//	    func(topic string, payload []byte) error {
//	        id, _, err := topics.ParseDeviceTopic(topic)
//	        ...
//	    })
package mqtt
