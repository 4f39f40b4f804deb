// Package logs reads daemon run logs for the CLI.
//
// Last returns the trailing lines of a log with bounded memory, ReadFrom
// resumes at a byte offset, and Follow polls for appended lines until its
// context ends. A missing file reads as empty so callers can start watching
// before the daemon has written anything.
package logs
