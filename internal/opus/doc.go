// Package opus handles encoding, decoding, and streaming of Opus audio frames
// for Discord voice playback.
//
// Frames travel in a minimal binary format: concatenated length-prefixed frames
// ([uint16 LE length][opus bytes]). No headers, no metadata.
//
// EncodeURL runs FFmpeg against a live stream URL, demuxes its Ogg output and
// produces length-prefixed frames. FrameReader reads them back, and
// StreamToVoice sends them to a voice connection.
package opus
