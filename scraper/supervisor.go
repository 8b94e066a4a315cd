// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/lectern/core"
)

const (
	DefaultMaxRestarts  = 3
	DefaultRestartDelay = 5 * time.Second
)

// Supervisor runs a Scraper and replaces its session whenever the session is
// lost, resuming from the cursor. Publications collected before a restart
// are kept.
type Supervisor struct {
	Scraper      *Scraper
	NewSession   SessionFactory
	MaxRestarts  int
	RestartDelay time.Duration

	logger *slog.Logger
}

// NewSupervisor creates a Supervisor with the default restart policy.
func NewSupervisor(scraper *Scraper, newSession SessionFactory) *Supervisor {
	return &Supervisor{
		Scraper:      scraper,
		NewSession:   newSession,
		MaxRestarts:  DefaultMaxRestarts,
		RestartDelay: DefaultRestartDelay,
		logger:       slog.Default().With("component", "supervisor"),
	}
}

// Run scrapes to completion starting from cursor, which may be nil.
// The returned result is never nil, even on error. When every restart has
// been used the error wraps both ErrRestartsExhausted and the last failure.
func (s *Supervisor) Run(ctx context.Context, cursor *core.ScrapeCursor) (*Result, error) {
	res := NewResult(cursor)
	logger := s.logger.With("run_id", res.Cursor.RunID)

	for restarts := 0; ; restarts++ {
		err := s.attempt(ctx, res)
		if err == nil {
			logger.Info("scrape completed",
				"publications", len(res.Publications),
				"pages", res.Cursor.Page,
				"restarts", restarts)
			return res, nil
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if !errors.Is(err, ErrSessionLost) {
			return res, err
		}
		if restarts >= s.MaxRestarts {
			logger.Error("giving up after session restarts", "restarts", restarts, "err", err)
			return res, fmt.Errorf("%w: %w", ErrRestartsExhausted, err)
		}

		logger.Warn("session lost, restarting",
			"attempt", restarts+1,
			"max_restarts", s.MaxRestarts,
			"collected", len(res.Publications),
			"err", err)
		if err := sleepCtx(ctx, s.RestartDelay); err != nil {
			return res, err
		}
	}
}

// attempt runs the scraper on a fresh session and always closes it.
func (s *Supervisor) attempt(ctx context.Context, res *Result) error {
	sess := s.NewSession()
	defer func() {
		if err := sess.Close(); err != nil {
			s.logger.Warn("failed to close session", "err", err)
		}
	}()

	if err := sess.Open(ctx); err != nil {
		if errors.Is(err, ErrSessionLost) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrSessionLost, err)
	}
	return s.Scraper.Run(ctx, sess, res)
}
