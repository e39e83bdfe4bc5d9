// Package browser drives a remote headless Chrome over the DevTools
// protocol to turn HTML into PDF bytes. It discovers the control channel
// through the browser's /json/version metadata endpoint and opens one tab
// per render, released on every exit path.
package browser

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	apperrors "invoicepdf/internal/pkg/errors"
)

type Client interface {
	Render(ctx context.Context, html string, opts PDFOptions) ([]byte, error)
}

type ChromeClient struct {
	baseURL string
	http    *http.Client

	// renderTimeout bounds one full attempt: connect, load, settle, print.
	renderTimeout time.Duration
	// idleWindow is how long the page must stay free of in-flight network
	// requests before it counts as quiescent.
	idleWindow time.Duration
}

type Option func(*ChromeClient)

func WithRenderTimeout(d time.Duration) Option {
	return func(c *ChromeClient) { c.renderTimeout = d }
}

func WithIdleWindow(d time.Duration) Option {
	return func(c *ChromeClient) { c.idleWindow = d }
}

// NewChromeClient creates a client for a browser reachable at baseURL,
// e.g. "http://chrome:9222".
func NewChromeClient(baseURL string, opts ...Option) *ChromeClient {
	c := &ChromeClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		http:          &http.Client{Timeout: 5 * time.Second},
		renderTimeout: 90 * time.Second,
		idleWindow:    500 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type versionInfo struct {
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// DiscoverEndpoint asks the browser for its active control-channel address.
func (c *ChromeClient) DiscoverEndpoint(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/json/version", nil)
	if err != nil {
		return "", apperrors.WrapWithCode(err, apperrors.CodeUnavailable, "browser.discover", "bad browser base url")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return "", apperrors.WrapWithCode(err, apperrors.CodeUnavailable, "browser.discover", "browser metadata endpoint unreachable")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", apperrors.Newf(apperrors.CodeUnavailable, "browser metadata endpoint returned %d", res.StatusCode)
	}

	var v versionInfo
	if err := json.NewDecoder(res.Body).Decode(&v); err != nil {
		return "", apperrors.WrapWithCode(err, apperrors.CodeUnavailable, "browser.discover", "invalid browser metadata response")
	}
	if v.WebSocketDebuggerURL == "" {
		return "", apperrors.New(apperrors.CodeUnavailable, "browser reported no debugger endpoint")
	}
	return v.WebSocketDebuggerURL, nil
}

// Render loads html into a fresh tab, waits for network quiescence, prints
// to PDF with the given page options and returns the bytes. The tab and the
// control channel are torn down whether or not printing succeeded.
func (c *ChromeClient) Render(ctx context.Context, html string, opts PDFOptions) ([]byte, error) {
	if strings.TrimSpace(html) == "" {
		return nil, apperrors.InvalidContent("empty html document")
	}

	wsURL, err := c.DiscoverEndpoint(ctx)
	if err != nil {
		return nil, err
	}

	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(ctx, wsURL, chromedp.NoModifyURL)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	runCtx, cancelRun := context.WithTimeout(tabCtx, c.renderTimeout)
	defer cancelRun()

	// The listener must be registered before any content loads, or early
	// requests would be missed and the page could look idle too soon.
	idle := trackNetworkActivity(tabCtx)

	var pdf []byte
	err = chromedp.Run(runCtx,
		network.Enable(),
		chromedp.Navigate("about:blank"),
		setDocumentContent(html),
		idle.waitQuiescent(c.idleWindow),
		emulation.SetEmulatedMedia().WithMedia("screen"),
		printToPDF(opts, &pdf),
	)
	if err != nil {
		return nil, classifyRenderErr(err)
	}
	return pdf, nil
}

func classifyRenderErr(err error) error {
	switch {
	case err == nil:
		return nil
	case apperrors.Is(err, context.DeadlineExceeded):
		return apperrors.WrapWithCode(err, apperrors.CodeTimeout, "browser.render", "page failed to stabilize in time")
	case isContentRejected(err):
		return apperrors.WrapWithCode(err, apperrors.CodeInvalidContent, "browser.render", "browser rejected document content")
	default:
		return apperrors.WrapWithCode(err, apperrors.CodeRenderError, "browser.render", "render attempt failed")
	}
}

// isContentRejected spots the browser refusing the document itself, as
// opposed to faulting while rendering it. Those failures repeat on every
// attempt, so they are terminal.
func isContentRejected(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Cannot navigate to invalid URL") ||
		strings.Contains(msg, "invalid parameter") ||
		strings.Contains(msg, "unsupported doctype")
}
