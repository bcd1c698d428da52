// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fulltext

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// browserRenderer renders pages in a shared headless browser. The browser
// launches on first use and is reused across fetches.
type browserRenderer struct {
	mu      sync.Mutex
	browser *rod.Browser
	log     *zap.Logger
}

func newBrowserRenderer(log *zap.Logger) *browserRenderer {
	return &browserRenderer{log: log}
}

// render loads the URL, waits for the load event, and returns the body
// element's visible text.
func (b *browserRenderer) render(ctx context.Context, url string) (string, error) {
	browser, err := b.get()
	if err != nil {
		return "", err
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return "", fmt.Errorf("opening page: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx)
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("waiting for load: %w", err)
	}

	body, err := page.Element("body")
	if err != nil {
		return "", fmt.Errorf("locating body: %w", err)
	}
	text, err := body.Text()
	if err != nil {
		return "", fmt.Errorf("reading body text: %w", err)
	}
	return text, nil
}

// get launches the browser on first use.
func (b *browserRenderer) get() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		return b.browser, nil
	}
	browser := rod.New()
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}
	b.log.Info("headless browser launched")
	b.browser = browser
	return b.browser, nil
}

// close shuts the shared browser down.
func (b *browserRenderer) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			b.log.Warn("closing browser", zap.Error(err))
		}
		b.browser = nil
	}
}
