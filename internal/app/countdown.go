package app

import (
	"context"
	"time"
)

// startCountdownLocked starts the ticker for the question of generation gen.
// Only one countdown exists at a time.
func (c *Controller) startCountdownLocked(gen uint64) {
	c.stopCountdownLocked()
	ctx, cancel := context.WithCancel(c.baseCtx)
	c.countdown = cancel
	go c.runCountdown(ctx, gen)
}

// stopCountdownLocked is idempotent.
func (c *Controller) stopCountdownLocked() {
	if c.countdown != nil {
		c.countdown()
		c.countdown = nil
	}
}

func (c *Controller) runCountdown(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if ctx.Err() != nil || gen != c.generation || c.phase != PhaseAwaitingSelection {
			c.mu.Unlock()
			return
		}
		c.remaining--
		if c.remaining > 0 {
			c.publishLocked()
			c.mu.Unlock()
			continue
		}

		c.remaining = 0
		sub := c.beginSubmitLocked(c.correctOptionLocked(), true)
		c.mu.Unlock()

		c.log.Info().Str("question", sub.QuestionID).Msg("countdown expired")
		// send logs failures and keeps the submission for Retry.
		_ = c.send(c.baseCtx, gen, sub)
		return
	}
}
