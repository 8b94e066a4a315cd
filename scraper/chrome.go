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
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// actionTimeout bounds actions that have no explicit wait of their own.
const actionTimeout = 30 * time.Second

// ChromeSession drives a headless Chrome tab through chromedp.
type ChromeSession struct {
	headless  bool
	execPath  string
	userAgent string

	mu          sync.Mutex
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	logger      *slog.Logger
}

var _ Session = (*ChromeSession)(nil)

// ChromeOption configures a ChromeSession.
type ChromeOption func(*ChromeSession)

// WithHeadless toggles headless mode. Sessions are headless by default.
func WithHeadless(headless bool) ChromeOption {
	return func(s *ChromeSession) { s.headless = headless }
}

// WithExecPath sets the browser executable instead of searching PATH.
func WithExecPath(path string) ChromeOption {
	return func(s *ChromeSession) { s.execPath = path }
}

// WithChromeUserAgent overrides the browser user agent.
func WithChromeUserAgent(ua string) ChromeOption {
	return func(s *ChromeSession) { s.userAgent = ua }
}

// NewChromeSession creates an unopened session.
func NewChromeSession(opts ...ChromeOption) *ChromeSession {
	s := &ChromeSession{
		headless: true,
		logger:   slog.Default().With("component", "chrome-session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open launches the browser and a tab. The browser outlives ctx; only Close
// shuts it down.
func (s *ChromeSession) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tabCtx != nil {
		return nil
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.Flag("headless", s.headless), chromedp.DisableGPU)
	if s.execPath != "" {
		opts = append(opts, chromedp.ExecPath(s.execPath))
	}
	if s.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.userAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		s.logger.Debug(fmt.Sprintf(format, args...))
	}))

	// The first Run allocates the browser.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return fmt.Errorf("%w: failed to start browser: %w", ErrSessionLost, err)
	}

	s.tabCtx, s.tabCancel, s.allocCancel = tabCtx, tabCancel, allocCancel
	s.logger.Info("browser session opened", "headless", s.headless)
	return nil
}

func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, actionTimeout, chromedp.Navigate(url))
}

// WaitFor waits until selector is visible.
func (s *ChromeSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	return s.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (s *ChromeSession) Click(ctx context.Context, selector string) error {
	return s.run(ctx, actionTimeout,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
	)
}

func (s *ChromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, actionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Close shuts down the tab and the browser process.
func (s *ChromeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tabCtx == nil {
		return nil
	}
	s.tabCancel()
	s.allocCancel()
	s.tabCtx, s.tabCancel, s.allocCancel = nil, nil, nil
	s.logger.Info("browser session closed")
	return nil
}

// run executes actions on the tab bounded by timeout and by ctx.
func (s *ChromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	s.mu.Lock()
	tabCtx := s.tabCtx
	s.mu.Unlock()

	if tabCtx == nil {
		return fmt.Errorf("%w: session is not open", ErrSessionLost)
	}

	opCtx, cancel := context.WithTimeout(tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(opCtx, actions...)
	return s.classify(ctx, tabCtx, opCtx, err)
}

// classify maps a chromedp error onto the session error taxonomy.
func (s *ChromeSession) classify(ctx, tabCtx, opCtx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case tabCtx.Err() != nil,
		errors.Is(err, chromedp.ErrInvalidContext),
		errors.Is(err, chromedp.ErrChannelClosed):
		return fmt.Errorf("%w: %w", ErrSessionLost, err)
	case errors.Is(opCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrWaitTimeout, err)
	default:
		return err
	}
}
