// Command tosca-controller discovers tosca devices and sends them requests
// checked against a hazard policy.
//
// Usage:
//
//	tosca-controller [command] [flags]
//
// Examples:
//
//	# Find devices on the local network
//	tosca-controller discover
//
//	# Switch a light on at half brightness
//	tosca-controller send kitchen PUT /on brightness=0.5
//
//	# Follow the events of a thermometer
//	tosca-controller watch attic
//
//	# Interactive shell
//	tosca-controller shell
package main

import "github.com/tosca-iot/tosca-go/cmd/tosca-controller/commands"

func main() {
	commands.Execute()
}
