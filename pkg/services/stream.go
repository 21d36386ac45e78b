package services

import (
	"context"
	"time"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/config"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
)

const (
	statusIdleText    = "準備開始處理您的問題..."
	statusWorkingText = "正在處理您的問題..."
	statusSuccessText = "處理完成"
)

// StreamPacing controls how text is split into frames and how fast the
// frames go out.
type StreamPacing struct {
	ExplanationChunkSize int
	ExplanationDelay     time.Duration
	ResultChunkSize      int
	ResultDelay          time.Duration
	TrailingDelay        time.Duration
}

// PacingFromConfig converts the stream section of the configuration.
func PacingFromConfig(cfg config.StreamConfig) StreamPacing {
	return StreamPacing{
		ExplanationChunkSize: cfg.ExplanationChunkSize,
		ExplanationDelay:     cfg.ExplanationDelay,
		ResultChunkSize:      cfg.ResultChunkSize,
		ResultDelay:          cfg.ResultDelay,
		TrailingDelay:        cfg.TrailingDelay,
	}
}

// Unpaced keeps the chunk sizes and drops every delay.
func (p StreamPacing) Unpaced() StreamPacing {
	return StreamPacing{
		ExplanationChunkSize: p.ExplanationChunkSize,
		ResultChunkSize:      p.ResultChunkSize,
	}
}

// StreamEmitter writes chat frames to a channel in protocol order.
// Every method returns ctx.Err() once the consumer has gone away.
type StreamEmitter struct {
	ctx    context.Context
	out    chan<- models.StreamEvent
	pacing StreamPacing
}

// NewStreamEmitter creates an emitter writing to out. The caller owns out;
// a nil out discards every frame.
func NewStreamEmitter(ctx context.Context, out chan<- models.StreamEvent, pacing StreamPacing) *StreamEmitter {
	return &StreamEmitter{ctx: ctx, out: out, pacing: pacing}
}

// Emit sends one frame. An emitter without a channel discards frames.
func (e *StreamEmitter) Emit(ev models.StreamEvent) error {
	if e.out == nil {
		return e.ctx.Err()
	}
	select {
	case e.out <- ev:
		return nil
	case <-e.ctx.Done():
		return e.ctx.Err()
	}
}

func (e *StreamEmitter) Status(status models.StatusType, content string) error {
	return e.Emit(models.NewStatusEvent(status, content))
}

// Explanation streams text as explanation frames.
func (e *StreamEmitter) Explanation(text string) error {
	return e.chunked(text, e.pacing.ExplanationChunkSize, e.pacing.ExplanationDelay)
}

// Result streams the rendered result block, then pauses before the status frame.
func (e *StreamEmitter) Result(text string) error {
	if err := e.chunked(text, e.pacing.ResultChunkSize, e.pacing.ResultDelay); err != nil {
		return err
	}
	return e.sleep(e.pacing.TrailingDelay)
}

// Fail sends the error status followed by the legacy error frame.
func (e *StreamEmitter) Fail(message string) error {
	if err := e.Status(models.StatusError, message); err != nil {
		return err
	}
	return e.Emit(models.NewErrorEvent(message))
}

// Suggestions sends the follow-up frame; an empty list sends nothing.
func (e *StreamEmitter) Suggestions(suggestions []string) error {
	if len(suggestions) == 0 {
		return nil
	}
	return e.Emit(models.NewSuggestionsEvent(suggestions))
}

func (e *StreamEmitter) Done() error {
	return e.Emit(models.NewDoneEvent())
}

func (e *StreamEmitter) chunked(text string, size int, delay time.Duration) error {
	for _, chunk := range ChunkRunes(text, size) {
		if err := e.Emit(models.NewExplanationEvent(chunk)); err != nil {
			return err
		}
		if err := e.sleep(delay); err != nil {
			return err
		}
	}
	return nil
}

func (e *StreamEmitter) sleep(d time.Duration) error {
	if d <= 0 {
		return e.ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-e.ctx.Done():
		return e.ctx.Err()
	}
}

// ChunkRunes splits s into pieces of at most size runes. A non-positive
// size returns s whole.
func ChunkRunes(s string, size int) []string {
	if s == "" {
		return nil
	}
	runes := []rune(s)
	if size <= 0 || len(runes) <= size {
		return []string{s}
	}
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
