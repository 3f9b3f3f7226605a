package controller

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shouni/gemini-image-studio/pkg/domain"
	"github.com/shouni/gemini-image-studio/pkg/session"
	"github.com/shouni/gemini-image-studio/pkg/storage"
)

// --- Mocks ---

type mockGenerator struct {
	mu            sync.Mutex
	editCalls     int
	generateCalls int
	lastEdit      domain.EditRequest
	lastGenerate  domain.GenerateRequest

	// gate が nil でなければ、閉じられるまで応答を返さない。
	gate chan struct{}
	// started は呼び出しが始まったことを通知する。
	started chan struct{}

	result domain.DataURL
	err    error
}

func newMockGenerator(result domain.DataURL) *mockGenerator {
	return &mockGenerator{result: result, started: make(chan struct{}, 4)}
}

func (m *mockGenerator) wait(ctx context.Context) {
	m.started <- struct{}{}
	if m.gate == nil {
		return
	}
	select {
	case <-m.gate:
	case <-ctx.Done():
	}
}

func (m *mockGenerator) EditImage(ctx context.Context, req domain.EditRequest) (domain.DataURL, error) {
	m.mu.Lock()
	m.editCalls++
	m.lastEdit = req
	m.mu.Unlock()
	m.wait(ctx)
	return m.result, m.err
}

func (m *mockGenerator) GenerateImage(ctx context.Context, req domain.GenerateRequest) (domain.DataURL, error) {
	m.mu.Lock()
	m.generateCalls++
	m.lastGenerate = req
	m.mu.Unlock()
	m.wait(ctx)
	return m.result, m.err
}

func (m *mockGenerator) calls() (edit, generate int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.editCalls, m.generateCalls
}

// --- Helpers ---

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestController(t *testing.T, gen *mockGenerator) (*Controller, *session.Store) {
	t.Helper()
	store, err := session.NewStore(storage.NewMemory(), 0)
	require.NoError(t, err)
	c, err := New(gen, store, 0)
	require.NoError(t, err)
	return c, store
}

var (
	alex  = domain.User{Name: "Alex Johnson", Email: "alex.j@example.com", Avatar: "AJ"}
	maria = domain.User{Name: "Maria Garcia", Email: "maria.g@example.com", Avatar: "MG"}
)
