package browser

import (
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
)

func TestOptionsExtendDefaults(t *testing.T) {
	base := Options(Config{})
	assert.Greater(t, len(base), len(chromedp.DefaultExecAllocatorOptions))

	full := Options(Config{Headless: true, NoSandbox: true, ExecPath: "/usr/bin/chromium"})
	assert.Len(t, full, len(base)+3)
}
