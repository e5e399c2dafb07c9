// Package command decodes gbuf frames into ordered drawing commands.
//
// A gbuf frame is a JSON object of the form
//
//	{"commands": [{"cmd": "setwindow", "args": [0, 0, 100, 50]}, ...]}
//
// delivered either as a JSON string, raw bytes or an already structured value.
// Payloads may additionally be zstd or gzip compressed, optionally base64
// wrapped when carried inside a JSON string. Decoding never panics; every
// failure is reported as a *DecodeError.
package command
