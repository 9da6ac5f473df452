// Package database keeps the rotation events of the running session in an
// in-memory SQLite database (modernc.org/sqlite, no cgo).
//
// Nothing is written to disk: the log lives exactly as long as the
// process. It answers the questions the end-of-session summary needs, such
// as how often an exit address was handed out twice.
package database
