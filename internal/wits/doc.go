// Package wits owns the telemetry connection to the rig: transport dialing
// (TCP, UDP, serial, streaming websocket with optional TCP proxy bridging),
// the auto-connect/auto-reconnect state machine, heartbeat keepalive, and
// parsing of level-0 messages (tab-separated channel=value pairs) into
// channel-keyed samples.
//
// Failures are non-fatal by design: connection errors feed the retry policy,
// malformed pairs are dropped without discarding the rest of the message,
// and consumers observe everything through the Samples/States/Errors
// channels.
package wits
