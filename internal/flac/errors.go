package flac

import (
	"errors"
	"fmt"
)

// Package-level errors for FLAC decoding and seeking.
var (
	// ErrOutOfData indicates the stream ended before a read could be satisfied.
	// Readers surface it as a short PCM frame count, not as a failure.
	ErrOutOfData = errors.New("flac: out of data")

	// ErrInvalidHeader indicates a sync code was found but the frame header
	// fields are reserved, malformed, fail the CRC-8, or disagree with
	// StreamInfo.
	ErrInvalidHeader = errors.New("flac: invalid frame header")

	// ErrInvalidData indicates a malformed subframe or residual.
	ErrInvalidData = errors.New("flac: invalid frame data")

	// ErrCRCMismatch indicates a frame whose CRC-16 footer does not match its
	// contents. errors.Is(ErrCRCMismatch, ErrInvalidData) reports true.
	ErrCRCMismatch = fmt.Errorf("%w: CRC-16 mismatch", ErrInvalidData)

	// ErrOutOfRange indicates a seek target beyond the end of the stream.
	ErrOutOfRange = errors.New("flac: seek target out of range")

	// ErrInvalidStream indicates a missing "fLaC" signature or malformed
	// metadata.
	ErrInvalidStream = errors.New("flac: invalid stream")

	// ErrNotSeekable indicates the underlying reader does not implement
	// io.Seeker and the operation needs to move backwards.
	ErrNotSeekable = errors.New("flac: stream is not seekable")

	// ErrSeekDisabled indicates every seek strategy has been disabled.
	ErrSeekDisabled = errors.New("flac: all seek strategies disabled")

	// ErrNoChecksum indicates StreamInfo carries an all-zero MD5 signature.
	ErrNoChecksum = errors.New("flac: stream has no MD5 signature")

	// ErrChecksumMismatch indicates decoded audio whose MD5 differs from the
	// StreamInfo signature.
	ErrChecksumMismatch = errors.New("flac: MD5 signature mismatch")

	// ErrClosed is returned by every operation on a closed Decoder.
	ErrClosed = errors.New("flac: decoder is closed")
)
