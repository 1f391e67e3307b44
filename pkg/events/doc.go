// Package events carries device events over an MQTT broker.
//
// Firmware publishes with a Publisher; controllers consume with a
// Subscriber. An Event is CBOR with integer keys and travels on
// "<prefix>/<device>/events/<name>".
//
// Within one device, events are ordered by (Epoch, Seq). Epoch changes when
// the publisher restarts; Seq grows by one per event. A Subscription drops
// anything not newer than the last event it delivered. Nothing is ordered
// across devices.
//
// A Subscription ends when its context is cancelled, when Close is called,
// or when the broker connection is lost. The channel then closes and Err
// tells which: ErrBrokerDisconnected is the retryable terminal signal.
package events
