package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"invoicepdf/internal/ports"
	"invoicepdf/internal/tokens"
)

// fakeStorage is an in-memory ports.StorageProvider for handler tests.
type fakeStorage struct {
	objects map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}}
}

func (f *fakeStorage) Provider() string { return "memory" }

func (f *fakeStorage) PutObject(_ context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Reader)
	if err != nil {
		return ports.PutObjectOutput{}, err
	}
	f.objects[in.ObjectKey] = data
	return ports.PutObjectOutput{ObjectKey: in.ObjectKey, Size: int64(len(data))}, nil
}

func (f *fakeStorage) GetObject(_ context.Context, objectKey string) (io.ReadCloser, string, int64, error) {
	data, ok := f.objects[objectKey]
	if !ok {
		return nil, "", 0, io.ErrUnexpectedEOF
	}
	return io.NopCloser(bytes.NewReader(data)), "application/pdf", int64(len(data)), nil
}

func (f *fakeStorage) DeleteObject(_ context.Context, objectKey string) error {
	delete(f.objects, objectKey)
	return nil
}

func newDownloadServer(t *testing.T, store tokens.Store, sp ports.StorageProvider) *httptest.Server {
	t.Helper()
	h := New(Deps{SP: sp, Tokens: store})
	r := chi.NewRouter()
	r.Get("/download/{token}", h.RedeemDownload)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestRedeemDownload(t *testing.T) {
	ctx := context.Background()
	pdfBytes := []byte("%PDF-1.4 test document")

	t.Run("valid token streams the pdf exactly once", func(t *testing.T) {
		store := tokens.NewMemoryStore()
		sp := newFakeStorage()
		sp.objects["abc123.pdf"] = pdfBytes
		srv := newDownloadServer(t, store, sp)

		token, err := store.Issue(ctx, "abc123.pdf", 10*time.Minute)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}

		res, err := http.Get(srv.URL + "/download/" + token)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer res.Body.Close()

		if res.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", res.StatusCode)
		}
		if ct := res.Header.Get("Content-Type"); ct != "application/pdf" {
			t.Errorf("content-type = %q", ct)
		}
		if cd := res.Header.Get("Content-Disposition"); cd != `attachment; filename="abc123.pdf"` {
			t.Errorf("content-disposition = %q", cd)
		}
		body, _ := io.ReadAll(res.Body)
		if !bytes.Equal(body, pdfBytes) {
			t.Errorf("body = %q, want pdf bytes", body)
		}

		// Second redemption of the same token must miss.
		res2, err := http.Get(srv.URL + "/download/" + token)
		if err != nil {
			t.Fatalf("second get: %v", err)
		}
		defer res2.Body.Close()
		if res2.StatusCode != http.StatusNotFound {
			t.Errorf("second redemption status = %d, want 404", res2.StatusCode)
		}
	})

	t.Run("unknown and consumed tokens are indistinguishable", func(t *testing.T) {
		store := tokens.NewMemoryStore()
		sp := newFakeStorage()
		sp.objects["abc123.pdf"] = pdfBytes
		srv := newDownloadServer(t, store, sp)

		token, err := store.Issue(ctx, "abc123.pdf", 10*time.Minute)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if _, err := http.Get(srv.URL + "/download/" + token); err != nil {
			t.Fatalf("burn token: %v", err)
		}

		consumed := fetchBody(t, srv.URL+"/download/"+token)
		unknown := fetchBody(t, srv.URL+"/download/no-such-token")
		if consumed.status != http.StatusNotFound || unknown.status != http.StatusNotFound {
			t.Fatalf("statuses = %d/%d, want 404/404", consumed.status, unknown.status)
		}
		if !bytes.Equal(consumed.body, unknown.body) {
			t.Errorf("envelopes differ: %q vs %q", consumed.body, unknown.body)
		}
	})

	t.Run("valid token for a missing object is a 404", func(t *testing.T) {
		store := tokens.NewMemoryStore()
		srv := newDownloadServer(t, store, newFakeStorage())

		token, err := store.Issue(ctx, "gone.pdf", 10*time.Minute)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}

		got := fetchBody(t, srv.URL+"/download/"+token)
		if got.status != http.StatusNotFound {
			t.Errorf("status = %d, want 404", got.status)
		}
	})
}

type httpResult struct {
	status int
	body   []byte
}

func fetchBody(t *testing.T, url string) httpResult {
	t.Helper()
	res, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	return httpResult{status: res.StatusCode, body: body}
}
