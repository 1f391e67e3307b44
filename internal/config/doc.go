// Package config loads the YAML configuration of the tosca binaries.
//
// Loading starts from built-in defaults, overlays the file when one is
// given, then applies TOSCA_* environment variables (for example
// TOSCA_BROKER_HOST or TOSCA_POLICY_DEFAULT) and validates the result.
//
// A controller configuration:
//
//	discovery:
//	  timeout: 3s
//	devices:
//	  - 192.168.1.20:3000
//	broker:
//	  enabled: true
//	  host: mqtt.local
//	policy:
//	  file: /etc/tosca/policy.yaml
//	  default: block
//	cache:
//	  path: /var/lib/tosca/cache.db
//	history:
//	  enabled: true
//	  url: http://influx.local:8086
//	  org: home
//	  bucket: tosca
//	log:
//	  level: debug
//	  format: json
package config
