package server

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shouni/gemini-image-studio/pkg/controller"
	"github.com/shouni/gemini-image-studio/pkg/domain"
	"github.com/shouni/gemini-image-studio/pkg/session"
	"github.com/shouni/gemini-image-studio/pkg/storage"
)

// --- Mocks ---

type mockGenerator struct {
	mu    sync.Mutex
	gate  chan struct{}
	calls int
	url   domain.DataURL
	err   error
}

func (m *mockGenerator) wait(ctx context.Context) {
	m.mu.Lock()
	m.calls++
	gate := m.gate
	m.mu.Unlock()
	if gate == nil {
		return
	}
	select {
	case <-gate:
	case <-ctx.Done():
	}
}

func (m *mockGenerator) EditImage(ctx context.Context, _ domain.EditRequest) (domain.DataURL, error) {
	m.wait(ctx)
	return m.url, m.err
}

func (m *mockGenerator) GenerateImage(ctx context.Context, _ domain.GenerateRequest) (domain.DataURL, error) {
	m.wait(ctx)
	return m.url, m.err
}

// --- Helpers ---

func newTestServer(t *testing.T, gen *mockGenerator, configure ...func(*Server)) (*httptest.Server, *controller.Controller) {
	t.Helper()
	store, err := session.NewStore(storage.NewMemory(), 0)
	require.NoError(t, err)
	ctrl, err := controller.New(gen, store, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	s, err := New(ctx, ctrl, session.NewMockIdentityProvider())
	require.NoError(t, err)
	for _, fn := range configure {
		fn(s)
	}

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		cancel()
		s.Close()
		ts.Close()
	})
	return ts, ctrl
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 3, 2))))
	return buf.Bytes()
}
