// Package broker wraps paho.mqtt.golang for tosca event publishing and
// subscription.
//
// The Client tracks subscriptions and restores them after an automatic
// reconnect. Listeners registered with NotifyDisconnect learn about lost
// connections so that subscribers can surface a terminal signal instead of
// going silent.
//
// Topic layout:
//
//	<prefix>/<device-id>/events/<event-name>   device events
//	<prefix>/<client-id>/status                online/offline status (retained)
//
// The default prefix is "tosca".
package broker
