// Package audio serializes spoken feedback so messages never overlap, and
// synthesizes speech through the translate TTS endpoint with a disk cache.
package audio

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/arkumar/medscan/internal/language"
)

// Priority selects the queue tier. Alerts jump ahead of pending narration
// but never interrupt the message currently playing.
type Priority int

const (
	PriorityNarration Priority = iota
	PriorityAlert
)

// Message is one utterance waiting for playback. Language is fixed when
// the message is enqueued.
type Message struct {
	Text     string
	Language language.Language
	Priority Priority
}

// Synthesizer turns text into a playable audio file and returns its path.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, langCode string) (string, error)
}

// Player plays one audio file to completion.
type Player interface {
	Play(ctx context.Context, path string) error
}

// Queue is the two-tier audio feedback queue. Enqueue never blocks; a
// single consumer started with Run plays exactly one message to completion
// before dequeuing the next.
type Queue struct {
	synth  Synthesizer
	player Player

	mu        sync.Mutex
	alerts    []Message
	narration []Message
	idle      bool
	idleCh    chan struct{}
	closed    bool

	wake chan struct{}
}

func NewQueue(synth Synthesizer, player Player) *Queue {
	idleCh := make(chan struct{})
	close(idleCh)
	return &Queue{
		synth:  synth,
		player: player,
		idle:   true,
		idleCh: idleCh,
		wake:   make(chan struct{}, 1),
	}
}

// Enqueue adds msg to its tier and returns immediately. Messages enqueued
// after Close are dropped.
func (q *Queue) Enqueue(msg Message) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		log.Warn().Str("text", msg.Text).Msg("audio queue closed, dropping message")
		return
	}
	if msg.Priority == PriorityAlert {
		q.alerts = append(q.alerts, msg)
	} else {
		q.narration = append(q.narration, msg)
	}
	if q.idle {
		q.idle = false
		q.idleCh = make(chan struct{})
	}
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Drain blocks until every message queued so far has finished playing, or
// ctx is done.
func (q *Queue) Drain(ctx context.Context) error {
	q.mu.Lock()
	idleCh := q.idleCh
	q.mu.Unlock()

	select {
	case <-idleCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops intake. Messages already queued still play.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// Depth reports how many messages are waiting across both tiers.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.alerts) + len(q.narration)
}

// Run consumes the queue until ctx is done. Synthesis or playback failure
// skips that message and never wedges the queue.
func (q *Queue) Run(ctx context.Context) {
	for {
		msg, ok := q.dequeue()
		if !ok {
			q.markIdle()
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
			}
			continue
		}
		q.play(ctx, msg)
	}
}

func (q *Queue) dequeue() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.alerts) > 0 {
		msg := q.alerts[0]
		q.alerts = q.alerts[1:]
		return msg, true
	}
	if len(q.narration) > 0 {
		msg := q.narration[0]
		q.narration = q.narration[1:]
		return msg, true
	}
	return Message{}, false
}

func (q *Queue) markIdle() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.alerts) == 0 && len(q.narration) == 0 && !q.idle {
		q.idle = true
		close(q.idleCh)
	}
}

func (q *Queue) play(ctx context.Context, msg Message) {
	path, err := q.synth.Synthesize(ctx, msg.Text, msg.Language.TTSCode)
	if err != nil {
		log.Error().Err(err).Str("language", msg.Language.Name).Str("text", msg.Text).Msg("tts synthesis failed, skipping message")
		return
	}
	if err := q.player.Play(ctx, path); err != nil {
		log.Error().Err(err).Str("path", path).Msg("audio playback failed")
	}
}
