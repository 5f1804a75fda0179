// Package audio plays announcement segments on the display machine.
//
// Segments are short 16-bit PCM WAV recordings named after their
// identifier ("calling", "priority", "p", "7", ...). A Source fetches the
// raw file, DecodeWAV validates it against the output format, and Player
// hands the samples to oto. Decoded segments are kept in memory because
// the same handful of recordings is replayed all day.
package audio
