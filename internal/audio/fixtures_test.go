package audio

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
)

// sineChannels generates numChans channels of a sine at freq Hz, each
// channel at a different amplitude.
func sineChannels(frames, numChans, sampleRate int, freq float64, bitDepth int) [][]int {
	peak := float64(int64(1)<<(bitDepth-1) - 1)
	chans := make([][]int, numChans)
	for c := range chans {
		amp := peak / float64(c+2)
		chans[c] = make([]int, frames)
		for i := range chans[c] {
			chans[c][i] = int(math.Round(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))))
		}
	}
	return chans
}

func interleave(chans [][]int) []int {
	out := make([]int, 0, len(chans)*len(chans[0]))
	for i := range chans[0] {
		for c := range chans {
			out = append(out, chans[c][i])
		}
	}
	return out
}

// writeTestWAV writes interleaved samples to a new WAV file under t.TempDir.
func writeTestWAV(t *testing.T, sampleRate, bitDepth, numChans int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wav")
	w, err := NewWAVWriter(path, sampleRate, bitDepth, numChans)
	if err != nil {
		t.Fatalf("Failed to create WAV writer: %v", err)
	}
	buf := &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{NumChannels: numChans, SampleRate: sampleRate},
		SourceBitDepth: bitDepth,
	}
	if err := w.Write(buf); err != nil {
		t.Fatalf("Failed to write WAV: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close WAV: %v", err)
	}
	return path
}

func crc8(b []byte) byte {
	var crc byte
	for _, v := range b {
		crc ^= v
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x07
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func crc16(b []byte) uint16 {
	var crc uint16
	for _, v := range b {
		crc ^= uint16(v) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x8005
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// writeTestFLAC writes 16-bit channels as a FLAC file of verbatim frames of
// 1024 samples. Streams longer than 127 frames are not supported.
func writeTestFLAC(t *testing.T, sampleRate int, chans [][]int) string {
	t.Helper()
	const blockSize = 1024
	total := len(chans[0])
	if total > 127*blockSize {
		t.Fatalf("Test stream too long: %d samples", total)
	}

	var out bytes.Buffer
	out.WriteString("fLaC")
	out.Write([]byte{0x80, 0, 0, 34}) // last block, STREAMINFO
	info := make([]byte, 34)
	binary.BigEndian.PutUint16(info[0:], 16)
	binary.BigEndian.PutUint16(info[2:], blockSize)
	packed := uint64(sampleRate)<<44 | uint64(len(chans)-1)<<41 | uint64(15)<<36 | uint64(total)
	binary.BigEndian.PutUint64(info[10:], packed)
	out.Write(info)

	for n, pos := 0, 0; pos < total; n, pos = n+1, pos+blockSize {
		size := min(blockSize, total-pos)
		frame := []byte{0xFF, 0xF8}
		if size == blockSize {
			frame = append(frame, 10<<4)
		} else {
			frame = append(frame, 7<<4)
		}
		frame = append(frame, byte(len(chans)-1)<<4, byte(n))
		if size != blockSize {
			frame = binary.BigEndian.AppendUint16(frame, uint16(size-1))
		}
		frame = append(frame, crc8(frame))

		for _, ch := range chans {
			frame = append(frame, 0x02) // verbatim, no wasted bits
			for _, s := range ch[pos : pos+size] {
				frame = binary.BigEndian.AppendUint16(frame, uint16(int16(s)))
			}
		}
		frame = binary.BigEndian.AppendUint16(frame, crc16(frame))
		out.Write(frame)
	}

	path := filepath.Join(t.TempDir(), "test.flac")
	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		t.Fatalf("Failed to write FLAC: %v", err)
	}
	return path
}

// readAll drains d with PCMBuffer in odd-sized chunks.
func readAll(t *testing.T, d AudioDecoder) []int {
	t.Helper()
	buf := NewBuffer(d, 777)
	full := buf.Data
	var out []int
	for {
		buf.Data = full
		n, err := d.PCMBuffer(buf)
		if n > 0 {
			out = append(out, full[:n]...)
		}
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Failed to read samples: %v", err)
		}
	}
}

func compareSamples(t *testing.T, got, want []int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Sample %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}
