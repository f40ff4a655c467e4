// Package announce publishes the daemon's presence and activity over
// MQTT.
//
// Three topics are published under a configurable prefix: a retained
// status topic with Last Will and Testament for offline detection, an
// event topic carrying each finalized scan, and a retained player-state
// topic relaying the latest Volumio snapshot. The announcer is optional
// and best-effort: broker trouble is logged and never reaches the
// device pipeline.
package announce
