// Package server は Controller を HTTP と WebSocket で公開します。
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/shouni/gemini-image-studio/pkg/controller"
	"github.com/shouni/gemini-image-studio/pkg/domain"
	"github.com/shouni/gemini-image-studio/pkg/session"
)

// DefaultMaxUploadBytes はアップロード画像の上限サイズです。
const DefaultMaxUploadBytes int64 = 20 << 20

// Server は API ハンドラと状態配信用の Hub をまとめたものです。
type Server struct {
	ctrl      *controller.Controller
	identity  session.IdentityProvider
	hub       *Hub
	router    *mux.Router
	baseCtx   context.Context
	maxUpload int64
	cancelSub func()
}

// New は Server を作成します。ctx はバックグラウンドで実行するリクエストに引き継がれます。
func New(ctx context.Context, ctrl *controller.Controller, identity session.IdentityProvider) (*Server, error) {
	if ctrl == nil {
		return nil, fmt.Errorf("ctrl (*controller.Controller) is required")
	}
	if identity == nil {
		return nil, fmt.Errorf("identity (session.IdentityProvider) is required")
	}

	s := &Server{
		ctrl:      ctrl,
		identity:  identity,
		hub:       NewHub(ctrl.State),
		baseCtx:   ctx,
		maxUpload: DefaultMaxUploadBytes,
	}
	s.cancelSub = ctrl.Subscribe(s.hub.Broadcast)
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/ws", s.hub).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(logRequests)
	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/accounts", s.handleAccounts).Methods(http.MethodGet)
	api.HandleFunc("/suggestions", s.handleSuggestions).Methods(http.MethodGet)
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/mode", s.handleMode).Methods(http.MethodPost)
	api.HandleFunc("/home", s.handleHome).Methods(http.MethodPost)
	api.HandleFunc("/edit/image", s.handleEditImage).Methods(http.MethodPost)
	api.HandleFunc("/edit/input", s.handleEditInput).Methods(http.MethodPut)
	api.HandleFunc("/edit/submit", s.handleEditSubmit).Methods(http.MethodPost)
	api.HandleFunc("/generate/input", s.handleGenerateInput).Methods(http.MethodPut)
	api.HandleFunc("/generate/submit", s.handleGenerateSubmit).Methods(http.MethodPost)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/history/select", s.handleHistorySelect).Methods(http.MethodPost)
	api.HandleFunc("/download/{mode}", s.handleDownload).Methods(http.MethodGet)
	return r
}

// Handler はルーティング済みの http.Handler を返します。
// CORS はルーティングより前に処理するため、プリフライトの OPTIONS もここで応答します。
func (s *Server) Handler() http.Handler {
	return enableCORS(s.router)
}

// Close は状態配信を止め、WebSocket 接続をすべて閉じます。
func (s *Server) Close() {
	s.cancelSub()
	s.hub.Close()
}

// Run は addr で待ち受け、ctx がキャンセルされるとグレースフルに停止します。
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "HTTPサーバーを起動します", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.InfoContext(ctx, "HTTPサーバーを停止します")
	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// --- Handlers ---

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.State())
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	users, err := s.identity.Accounts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.User{"accounts": users})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"suggestions": controller.EditSuggestions})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	user, err := s.identity.Lookup(r.Context(), body.Email)
	if err == nil {
		err = s.ctrl.Login(r.Context(), user)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.State())
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Logout()
	writeJSON(w, http.StatusOK, s.ctrl.State())
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode controller.Mode `json:"mode"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.ctrl.SetMode(body.Mode); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.State())
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.ctrl.GoHome()
	writeJSON(w, http.StatusOK, s.ctrl.State())
}

// handleEditImage は multipart の image フィールド、またはリクエストボディそのものを画像として受け取ります。
func (s *Server) handleEditImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	var src io.Reader = r.Body
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		file, _, err := r.FormFile("image")
		if errors.Is(err, http.ErrMissingFile) {
			writeError(w, r, domain.NewValidationError("Please upload an image first."))
			return
		}
		if err != nil {
			writeError(w, r, domain.NewDecodeError("Failed to read the uploaded form.", err))
			return
		}
		defer file.Close()
		src = file
	}

	if err := s.ctrl.LoadImage(r.Context(), src); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.State())
}

func (s *Server) handleEditInput(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Prompt string `json:"prompt"`
		Width  string `json:"width"`
		Height string `json:"height"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.ctrl.SetEditInput(body.Prompt, body.Width, body.Height); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.State())
}

func (s *Server) handleEditSubmit(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, "edit", s.ctrl.StartEdit)
}

func (s *Server) handleGenerateInput(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Prompt      string             `json:"prompt"`
		AspectRatio domain.AspectRatio `json:"aspectRatio"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.ctrl.SetGenerateInput(body.Prompt, body.AspectRatio); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.State())
}

func (s *Server) handleGenerateSubmit(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, "generate", s.ctrl.StartGenerate)
}

// submit はリクエストをバックグラウンドで開始して 202 を返します。結果は WebSocket で届きます。
func (s *Server) submit(w http.ResponseWriter, r *http.Request, kind string, start func(context.Context) (<-chan error, error)) {
	done, err := start(s.baseCtx)
	if err != nil {
		writeError(w, r, err)
		return
	}

	go func() {
		if err := <-done; err != nil {
			slog.WarnContext(s.baseCtx, "リクエストが成功しませんでした", "kind", kind, "error", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, s.ctrl.State())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]domain.DataURL{"history": s.ctrl.State().History})
}

func (s *Server) handleHistorySelect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Index int `json:"index"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.ctrl.SelectHistoryIndex(body.Index); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.State())
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	m := controller.Mode(mux.Vars(r)["mode"])
	name, asset, err := s.ctrl.Download(m)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", asset.MIMEType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(asset.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(asset.Data); err != nil {
		slog.WarnContext(r.Context(), "ダウンロードの書き込みに失敗しました", "error", err)
	}
}

// --- Helpers ---

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, domain.NewValidationError("Invalid request body."))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("レスポンスの書き込みに失敗しました", "error", err)
	}
}

func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrDecode),
		errors.Is(err, domain.ErrFormat):
		return http.StatusBadRequest
	case errors.Is(err, controller.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, session.ErrUnknownAccount),
		errors.Is(err, controller.ErrNoResult),
		errors.Is(err, controller.ErrHistoryIndex):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "リクエストの処理に失敗しました", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// --- Middleware ---

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.InfoContext(r.Context(), "HTTPリクエスト",
			"request_id", uuid.NewString(),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
