// Package monitor provides periodic telemetry sampling from the
// embedded controller.
//
// It owns:
//   - A cooperative sampling loop (one ReadRealtime per tick; the next
//     tick is scheduled only after the previous one returns, so reads
//     never overlap on the single EC resource)
//   - A rolling in-memory history of recent samples
//   - Observer fan-out per sample (SQLite history, MQTT, InfluxDB and
//     WebSocket broadcast are wired up as observers by the daemon)
//   - SQLite persistence with retention pruning
//
// Failure Handling:
//   - A failed tick is logged and counted; sampling continues on the
//     next tick. The EC occasionally returns transient read errors
//     while firmware is busy, so one bad tick must not stop telemetry.
//   - No per-read timeouts: a hung transport hangs the tick. The
//     debugfs interface either responds immediately or the kernel
//     module is gone, in which case every subsequent tick fails loudly.
//
// Usage:
//
//	m := monitor.New(eng, store, monitor.Options{
//	    Interval:    cfg.Monitor.Interval(),
//	    HistorySize: cfg.Monitor.HistorySize,
//	}, log)
//	m.OnSample(func(s monitor.Sample) { /* fan out */ })
//	go m.Run(ctx)
package monitor
