// Package feed delivers gbuf payloads to the viewer.
//
// Three sources are supported: a dserv WebSocket subscription (Client),
// a JSON file that is re-read whenever it changes (File), and a Lua
// script that builds frames through the gbuf table (Script). Every
// source writes into a Mailbox, a single slot where the newest payload
// replaces any payload not yet rendered.
package feed
