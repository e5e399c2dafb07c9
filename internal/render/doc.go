// Package render interprets decoded gbuf commands against a drawing Surface.
//
// A Session owns one Surface and executes whole frames as passes: the
// surface is cleared, a fresh GraphicsState is created, and every command
// is routed through the Dispatcher. Logical coordinates use a bottom-left
// origin and are mapped to device pixels by a Mapper, which also applies
// auto-scaling once a frame declares its window with setwindow.
//
// The package ships an Ebiten-backed Surface and a Game that previews a
// Session in a window. The headless gg-backed Surface lives in
// internal/raster.
package render
