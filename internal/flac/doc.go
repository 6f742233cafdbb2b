// Package flac decodes FLAC streams into interleaved PCM.
//
// A Decoder reads the metadata blocks when it is opened and then decodes
// audio frames on demand. Samples come out as int32, int16 or float32 in
// channel order, one PCM frame (a sample per channel) at a time. When the
// source implements io.Seeker the decoder can seek to any PCM frame using
// the stream's SEEKTABLE, a binary search over the byte range, or decoding
// forward from the start.
//
// Damaged frames are skipped by default: decoding resynchronises on the
// next frame header. Options.Strict reports them instead.
package flac
