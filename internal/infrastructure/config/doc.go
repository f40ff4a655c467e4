// Package config loads and validates the volumio-hid configuration.
//
// Configuration is read from a YAML file, merged over hardcoded defaults,
// and finally overridden by VOLUMIOHID_* environment variables. The result
// is validated before any subsystem starts.
//
// # Example
//
//	device:
//	  path: "/dev/input/by-id/usb-13ba_Barcode_Reader-event-kbd"
//	  on_unknown: "drop"
//	volumio:
//	  host: "localhost"
//	  port: 3000
//	commands:
//	  "0004775724": {command: "play"}
//	  "0004626662": {command: "stop"}
//	  "0004817709": {command: "volume", volume: "-"}
//	logging:
//	  level: "info"
//	  format: "json"
//
// Secrets (MQTT credentials, InfluxDB tokens) should be supplied via
// environment variables rather than committed to the config file.
package config
