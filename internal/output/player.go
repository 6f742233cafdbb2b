package output

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/linuxmatters/drcodec/internal/audio"
	"github.com/linuxmatters/drcodec/internal/config"
)

// Player streams an AudioDecoder to the default audio device through oto.
// oto allows one context per process, so a Player serves one format.
type Player struct {
	otoCtx     *oto.Context
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	sampleRate int
	channels   int
	volume     int
	log        *slog.Logger
}

// NewPlayer opens the audio device for 16-bit PCM at the given format.
func NewPlayer(sampleRate, channels int, logger *slog.Logger) (*Player, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	p := &Player{
		otoCtx:     ctx,
		sampleRate: sampleRate,
		channels:   channels,
		volume:     100,
		log:        logger,
	}

	// Create pipe for continuous streaming
	p.pipeReader, p.pipeWriter = io.Pipe()
	p.player = ctx.NewPlayer(p.pipeReader)
	p.player.Play()

	logger.Debug("audio output initialized", "sampleRate", sampleRate, "channels", channels)
	return p, nil
}

// SetVolume sets the volume (0-100)
func (p *Player) SetVolume(volume int) {
	p.volume = max(0, min(100, volume))
}

// Play decodes d to the end, or until ctx is cancelled, and waits for the
// device to drain. progress, if not nil, receives the PCM frames written.
func (p *Player) Play(ctx context.Context, d audio.AudioDecoder, progress audio.ProgressFunc) (int64, error) {
	if d.NumChannels() != p.channels || d.SampleRate() != p.sampleRate {
		return 0, fmt.Errorf("player opened for %d Hz %d channels, source is %d Hz %d channels",
			p.sampleRate, p.channels, d.SampleRate(), d.NumChannels())
	}

	buf := audio.NewBuffer(d, config.PlaybackBufferFrames)
	full := buf.Data
	var frames int64
	for {
		if err := ctx.Err(); err != nil {
			return frames, err
		}
		buf.Data = full
		n, err := d.PCMBuffer(buf)
		if err != nil && err != io.EOF {
			return frames, err
		}
		if n == 0 {
			break
		}

		// Blocks until the player has taken the bytes
		out := audio.ToInt16LE(full[:n], d.BitDepth(), p.volume)
		if _, err := p.pipeWriter.Write(out); err != nil {
			return frames, fmt.Errorf("pipe write failed: %w", err)
		}
		frames += int64(n / p.channels)
		if progress != nil {
			progress(frames)
		}
	}

	p.pipeWriter.Close()
	for p.player.IsPlaying() {
		select {
		case <-ctx.Done():
			return frames, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	return frames, nil
}

// Close releases output resources
func (p *Player) Close() error {
	if p.pipeWriter != nil {
		p.pipeWriter.Close()
	}
	var err error
	if p.player != nil {
		err = p.player.Close()
	}
	if p.pipeReader != nil {
		p.pipeReader.Close()
	}
	if p.otoCtx != nil {
		if serr := p.otoCtx.Suspend(); serr != nil && err == nil {
			err = serr
		}
	}
	return err
}
