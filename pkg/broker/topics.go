package broker

import "strings"

// DefaultTopicPrefix is the first level of every tosca topic.
const DefaultTopicPrefix = "tosca"

// Topics builds topic names under a prefix.
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	p := strings.Trim(t.Prefix, "/")
	if p == "" {
		return DefaultTopicPrefix
	}
	return p
}

// Event returns the topic of one event of a device.
func (t Topics) Event(deviceID, name string) string {
	return t.prefix() + "/" + deviceID + "/events/" + name
}

// DeviceEvents returns the wildcard topic matching every event of a device.
func (t Topics) DeviceEvents(deviceID string) string {
	return t.prefix() + "/" + deviceID + "/events/+"
}

// Status returns the retained status topic of a client.
func (t Topics) Status(clientID string) string {
	return t.prefix() + "/" + clientID + "/status"
}

// ParseEvent splits an event topic into device id and event name.
func (t Topics) ParseEvent(topic string) (deviceID, name string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.prefix()+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[1] != "events" || parts[0] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[0], parts[2], true
}
