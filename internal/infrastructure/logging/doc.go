// Package logging builds the daemon's structured logger on log/slog.
//
// Every record carries service and version fields so one aggregator can
// split streams from several machines. Format is json for production,
// text for reading a terminal; both honour the configured level:
//
//	logging:
//	  level: info    # debug | info | warn | error
//	  format: json   # or text
//	  output: stdout # or stderr
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("profile applied", "profile", "silent", "writes", 22)
//
// Never log secrets; the config file may hold broker credentials, so log
// paths and hosts, not whole config sections.
package logging
