// Package report renders verification results.
//
// A Sink receives each finished VerificationResult. TextSink writes one line
// per observation followed by a PASS/FAIL line, JSONSink writes one JSON
// document per result and LogSink logs the outcome through slog. An Emitter
// fans one result out to several sinks.
package report
