package browser

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/portfolio-cli/internal/resilience"
)

// Visit navigates p to url, retrying transient failures per retry, then
// waits up to loadWait for the page to load. A slow load is logged and
// tolerated; only the navigation error is returned.
func Visit(ctx context.Context, p Page, url string, retry resilience.RetryConfig, loadWait time.Duration) error {
	err := resilience.Do(ctx, retry, func(ctx context.Context) error {
		return p.Navigate(ctx, url)
	})
	if err != nil {
		return err
	}
	if err := p.WaitForLoad(ctx, loadWait); err != nil {
		zap.L().Warn("browser: page load wait expired", zap.String("url", url), zap.Error(err))
	}
	return nil
}
