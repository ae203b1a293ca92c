// Package influxdb ships telemetry to InfluxDB v2 for long-horizon
// dashboards.
//
// The SQLite history answers short-horizon queries from the local API;
// this is the Grafana-facing store. Two measurements: ec_telemetry (one
// point per monitor sample) and ec_apply (profile apply annotations).
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteTelemetry(host, influxdb.TelemetryPoint{CPUTemp: 62})
//
// Writes batch in the background and never block the monitor loop;
// delivery failures surface through the SetOnError callback. Connect
// pings first so a bad URL or token fails at startup, not at the first
// flush. All methods are safe for concurrent use.
package influxdb
