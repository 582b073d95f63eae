// Package logging provides structured logging for the hsearch engine.
// The daemon (cmd/hsearchd) never writes application logs to stdout —
// stdout is reserved for the line-delimited JSON-RPC protocol — so it
// always goes through SetupStdioSafe, which directs logs to a rotating
// file under DefaultLogDir instead.
package logging
