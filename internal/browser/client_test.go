package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"

	apperrors "invoicepdf/internal/pkg/errors"
)

func TestDiscoverEndpoint(t *testing.T) {
	ctx := context.Background()

	t.Run("returns debugger url", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/json/version" {
				http.NotFound(w, r)
				return
			}
			fmt.Fprint(w, `{"Browser":"HeadlessChrome/120.0","webSocketDebuggerUrl":"ws://127.0.0.1:9222/devtools/browser/abc"}`)
		}))
		defer srv.Close()

		c := NewChromeClient(srv.URL)
		ws, err := c.DiscoverEndpoint(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ws != "ws://127.0.0.1:9222/devtools/browser/abc" {
			t.Errorf("unexpected endpoint %q", ws)
		}
	})

	t.Run("browser unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // nothing listening anymore

		c := NewChromeClient(srv.URL)
		_, err := c.DiscoverEndpoint(ctx)
		if err == nil {
			t.Fatal("expected error")
		}
		if apperrors.GetCode(err) != apperrors.CodeUnavailable {
			t.Errorf("code = %s, want UNAVAILABLE", apperrors.GetCode(err))
		}
	})

	t.Run("non-200 metadata response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c := NewChromeClient(srv.URL)
		if _, err := c.DiscoverEndpoint(ctx); apperrors.GetCode(err) != apperrors.CodeUnavailable {
			t.Errorf("code = %s, want UNAVAILABLE", apperrors.GetCode(err))
		}
	})

	t.Run("missing debugger url field", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"Browser":"HeadlessChrome/120.0"}`)
		}))
		defer srv.Close()

		c := NewChromeClient(srv.URL)
		if _, err := c.DiscoverEndpoint(ctx); apperrors.GetCode(err) != apperrors.CodeUnavailable {
			t.Errorf("code = %s, want UNAVAILABLE", apperrors.GetCode(err))
		}
	})
}

func TestRenderRejectsEmptyHTML(t *testing.T) {
	c := NewChromeClient("http://127.0.0.1:9222")
	_, err := c.Render(context.Background(), "  \n\t", A4Invoice())
	if apperrors.GetCode(err) != apperrors.CodeInvalidContent {
		t.Errorf("code = %s, want INVALID_CONTENT", apperrors.GetCode(err))
	}
}

func TestClassifyRenderErr(t *testing.T) {
	t.Run("deadline becomes timeout", func(t *testing.T) {
		err := classifyRenderErr(fmt.Errorf("run: %w", context.DeadlineExceeded))
		if apperrors.GetCode(err) != apperrors.CodeTimeout {
			t.Errorf("code = %s, want TIMEOUT", apperrors.GetCode(err))
		}
	})

	t.Run("rejected content is terminal", func(t *testing.T) {
		err := classifyRenderErr(errors.New(`page.setDocumentContent: invalid parameter "html"`))
		if apperrors.GetCode(err) != apperrors.CodeInvalidContent {
			t.Errorf("code = %s, want INVALID_CONTENT", apperrors.GetCode(err))
		}
	})

	t.Run("anything else is a retryable render error", func(t *testing.T) {
		err := classifyRenderErr(errors.New("websocket: close 1006 (abnormal closure)"))
		if apperrors.GetCode(err) != apperrors.CodeRenderError {
			t.Errorf("code = %s, want RENDER_ERROR", apperrors.GetCode(err))
		}
		if !apperrors.IsRetryableRender(err) {
			t.Error("render error should be retryable")
		}
	})
}

func TestPDFOptions(t *testing.T) {
	t.Run("a4 invoice defaults", func(t *testing.T) {
		o := A4Invoice()
		if o.PaperWidthMM != 210 || o.PaperHeightMM != 297 {
			t.Errorf("paper = %gx%g mm, want 210x297", o.PaperWidthMM, o.PaperHeightMM)
		}
		if o.MarginTopMM != 20 || o.MarginBottomMM != 20 || o.MarginLeftMM != 15 || o.MarginRightMM != 15 {
			t.Error("unexpected margins")
		}
		if !o.PrintBackground {
			t.Error("background rendering should be on")
		}
	})

	t.Run("millimeter conversion", func(t *testing.T) {
		if got := mmToInches(25.4); got != 1.0 {
			t.Errorf("mmToInches(25.4) = %g, want 1", got)
		}
		if got := mmToInches(210); got < 8.26 || got > 8.28 {
			t.Errorf("A4 width = %g in, want ~8.27", got)
		}
	})
}

func TestNetworkTrackerQuiescence(t *testing.T) {
	tr := &networkTracker{
		inflight:     map[network.RequestID]struct{}{},
		lastActivity: time.Now().Add(-time.Second),
	}

	inflight, last := tr.quietSince()
	if inflight != 0 {
		t.Fatalf("expected no inflight requests, got %d", inflight)
	}
	if time.Since(last) < 500*time.Millisecond {
		t.Error("expected stale last activity")
	}

	tr.mark("req-1", true)
	if inflight, _ := tr.quietSince(); inflight != 1 {
		t.Errorf("inflight = %d, want 1", inflight)
	}
	tr.mark("req-1", false)
	if inflight, _ := tr.quietSince(); inflight != 0 {
		t.Errorf("inflight = %d, want 0", inflight)
	}
}
