// Package kms presents per-frame compositions on a display through
// hardware planes and atomic mode setting.
//
// A Device hands out Buffers (dumb or GBM backed), registers them as
// Framebuffers and opens Outputs. Each frame the caller builds a
// Composition, an ordered list of layers plus an optional pointer layer,
// and hands it to Output.Present, which assigns planes and commits the
// result in one atomic request. The first Present also sets the mode.
//
// Nothing in this package is safe for concurrent use.
package kms
