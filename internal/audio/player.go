package audio

import (
	"context"
	"log/slog"
	"sync"
)

// Sink consumes a clip, blocking until playback completes or ctx is
// canceled.
type Sink interface {
	Play(ctx context.Context, clip *Clip) error
}

// Player serializes narration playback. Only one clip plays at a time; a
// Play call while another clip is active is a no-op.
type Player struct {
	mu      sync.Mutex
	playing bool
	sink    Sink
	logger  *slog.Logger
}

// NewPlayer creates a player over the given sink.
func NewPlayer(sink Sink, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{
		sink:   sink,
		logger: logger,
	}
}

// Play starts the clip in the background. Returns false without starting
// anything when a clip is already playing.
func (p *Player) Play(ctx context.Context, clip *Clip) bool {
	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return false
	}
	p.playing = true
	p.mu.Unlock()

	go func() {
		defer func() {
			p.mu.Lock()
			p.playing = false
			p.mu.Unlock()
		}()
		if err := p.sink.Play(ctx, clip); err != nil {
			p.logger.Warn("narration playback failed",
				slog.String("error", err.Error()))
		}
	}()
	return true
}

// Playing reports whether a clip is currently active.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}
