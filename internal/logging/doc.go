// Package logging provides structured, rotating file-based logging for the
// vectordb server. When --debug is set, comprehensive JSON logs are written
// to ~/.vectordb/logs/; by default, logging stays minimal and goes to
// stderr only.
package logging
