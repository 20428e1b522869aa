// Package logging provides structured logging for eegrec.
//
// It wraps log/slog. A recording run normally uses [NewTeeLogger]: text
// lines on stderr for the operator and JSON lines in a size-rotated
// eegrec.log under the archive directory for later inspection with
// `eegrec logs`.
//
// # Context Propagation
//
// Child loggers carry persistent attributes:
//
//	logger := base.WithSession("Session_1_SYNTH").WithBoard("synthetic")
//	logger.WithState("streaming").Info("poll complete", "samples", 250)
//
// produces
//
//	{"time":"...","level":"INFO","msg":"poll complete","session":"Session_1_SYNTH","board":"synthetic","state":"streaming","samples":250}
//
// # Log Rotation
//
// [RotatingWriter] rolls eegrec.log over to eegrec.log.1, eegrec.log.2, ...
// (.1 is the newest) once a write would push it past MaxSizeMB. With Compress
// set, backups are gzipped in place.
//
// # Reading Logs
//
//	entries, err := logging.ReadLogFile(fs, path)
//	warnings := logging.FilterLogs(entries, logging.LogFilter{Level: "WARN"})
//	for _, e := range warnings {
//	    fmt.Println(logging.FormatEntry(e))
//	}
//
// # Testing
//
// Use [NopLogger] to discard output.
package logging
