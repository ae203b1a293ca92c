// Package mqtt connects wyvernd to an MQTT broker.
//
// The daemon's broker surface, all under one configurable prefix:
//
//	<prefix>/telemetry     periodic monitor samples
//	<prefix>/event/<kind>  apply results and errors
//	<prefix>/cmd/<op>      inbound commands (subscribe via Topics.AllCommands)
//	<prefix>/status        retained online/offline, with an LWT for crashes
//
// Topics builds these strings. The prefix defaults to "wyvern"; several
// machines share a broker by overriding it per host.
//
// Client wraps eclipse/paho.mqtt.golang and adds the pieces the daemon
// needs: automatic reconnection with backoff, re-subscription after a
// reconnect, a bounded wait on every broker call, and panic recovery
// around message handlers. Command topics drive EC writes, so restrict
// them in the broker's ACL when the broker is shared.
package mqtt
