// Package controller は編集・生成モードごとの画面状態を管理します。
//
// モードごとに同時に実行できるリクエストは 1 つだけです。リクエストにはモード単位の
// 世代番号を割り当て、ホームへ戻る・画像を選び直すなどで世代が進んだ後に届いた結果は破棄します。
package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/shouni/gemini-image-studio/pkg/domain"
	"github.com/shouni/gemini-image-studio/pkg/generator"
	"github.com/shouni/gemini-image-studio/pkg/imgutil"
	"github.com/shouni/gemini-image-studio/pkg/session"
)

var (
	// ErrBusy はそのモードでリクエストが実行中であることを示します。
	ErrBusy = errors.New("a request is already in progress for this mode")
	// ErrStale は結果が届く前に状態がリセットされ、結果を破棄したことを示します。
	ErrStale = errors.New("result discarded because the view was reset")
	// ErrNoResult はダウンロードできる画像がないことを示します。
	ErrNoResult = errors.New("no image to download")
	// ErrHistoryIndex は履歴の範囲外を指定したことを示します。
	ErrHistoryIndex = errors.New("history index out of range")
)

// Controller は画面状態を保持し、Generator と Store の結果を状態へ反映します。
type Controller struct {
	gen       generator.ImageGenerator
	store     *session.Store
	maxPrompt int

	mu            sync.Mutex
	mode          Mode
	edit          EditState
	generate      GenerateState
	editToken     uint64
	generateToken uint64
	version       uint64

	// nmu はリスナー呼び出しを直列化する。
	nmu       sync.Mutex
	lmu       sync.Mutex
	listeners map[int]func(State)
	nextID    int
}

// New は Controller を作成します。maxPromptLength が 0 以下なら既定値を使います。
func New(gen generator.ImageGenerator, store *session.Store, maxPromptLength int) (*Controller, error) {
	if gen == nil {
		return nil, fmt.Errorf("gen (generator.ImageGenerator) is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store (*session.Store) is required")
	}
	return &Controller{
		gen:       gen,
		store:     store,
		maxPrompt: maxPromptLength,
		mode:      ModeInitial,
		edit:      initialEditState(),
		generate:  initialGenerateState(),
		version:   1,
		listeners: make(map[int]func(State)),
	}, nil
}

// State は現在の状態のスナップショットを返します。
// 利用者と履歴の変更も Controller 経由で行うため、Version が同じなら内容も同じです。
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.store.Snapshot()
	return State{
		Version:  c.version,
		Mode:     c.mode,
		Edit:     c.edit,
		Generate: c.generate,
		User:     snap.User,
		History:  snap.History,
	}
}

// Subscribe は状態が変わるたびに呼ばれる関数を登録し、解除用の関数を返します。
func (c *Controller) Subscribe(fn func(State)) (cancel func()) {
	c.lmu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.lmu.Unlock()

	return func() {
		c.lmu.Lock()
		delete(c.listeners, id)
		c.lmu.Unlock()
	}
}

// commit は c.mu を保持した状態で呼び、版を進めてロックを外してから通知します。
func (c *Controller) commit() {
	c.version++
	c.mu.Unlock()
	c.notify()
}

// notify は現在のスナップショットをリスナーに渡します。呼び出しは直列化され、
// 後から始まった通知ほど新しいスナップショットを渡します。
func (c *Controller) notify() {
	c.nmu.Lock()
	defer c.nmu.Unlock()

	c.lmu.Lock()
	fns := make([]func(State), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.lmu.Unlock()
	if len(fns) == 0 {
		return
	}

	st := c.State()
	for _, fn := range fns {
		fn(st)
	}
}

// SetMode は画面のモードを切り替えます。入力や結果はそのまま残ります。
func (c *Controller) SetMode(m Mode) error {
	if !m.valid() {
		return domain.NewValidationError("Unknown mode: " + string(m))
	}
	c.mu.Lock()
	c.mode = m
	c.commit()
	return nil
}

// GoHome は両モードの入力・結果をすべて初期化してモード選択に戻ります。
// 実行中のリクエストの結果は届いても反映されません。
func (c *Controller) GoHome() {
	c.mu.Lock()
	c.resetLocked()
	c.commit()
}

func (c *Controller) resetLocked() {
	c.mode = ModeInitial
	c.edit = initialEditState()
	c.generate = initialGenerateState()
	c.editToken++
	c.generateToken++
}

// Login は利用者を切り替え、その利用者の履歴を読み込みます。
// 別の利用者がログイン中なら先にホームへ戻り、実行中のリクエストの結果は破棄します。
func (c *Controller) Login(ctx context.Context, user domain.User) error {
	c.mu.Lock()
	if cur, ok := c.store.CurrentUser(); ok && user.Email != "" && !strings.EqualFold(cur.Email, user.Email) {
		c.resetLocked()
	}
	err := c.store.Login(ctx, user)
	c.commit()
	return err
}

// Logout はログアウトしてホームに戻ります。
func (c *Controller) Logout() {
	c.mu.Lock()
	c.store.Logout()
	c.resetLocked()
	c.commit()
}

// LoadImage はアップロードされた画像を読み込み、編集モードの元画像にします。
// PNG/JPEG/WEBP 以外は受け付けません。
func (c *Controller) LoadImage(ctx context.Context, r io.Reader) error {
	asset, err := imgutil.EncodeReader(r)
	if err == nil && !imgutil.AcceptedUploadType(asset.MIMEType) {
		err = domain.NewValidationError("Please select a PNG, JPEG, or WEBP image.")
	}
	var info imgutil.ImageInfo
	if err == nil {
		if info, err = imgutil.Probe(asset.Data); err != nil {
			err = domain.NewDecodeError("The selected image could not be decoded.", err)
		}
	}
	if err != nil {
		slog.WarnContext(ctx, "画像の読み込みに失敗しました", "error", err)
		c.mu.Lock()
		c.edit.Error = err.Error()
		c.commit()
		return err
	}

	c.selectImage(asset, info)
	return nil
}

// SelectHistoryImage は履歴の画像を新しく選んだ画像として編集モードに読み込みます。
func (c *Controller) SelectHistoryImage(u domain.DataURL) error {
	asset, err := imgutil.Decode(u)
	if err != nil {
		return err
	}
	// 寸法が読めなくても編集自体はできる。
	info, _ := imgutil.Probe(asset.Data)
	c.selectImage(asset, info)
	return nil
}

// SelectHistoryIndex は履歴の i 番目（0 が最新）を編集モードに読み込みます。
func (c *Controller) SelectHistoryIndex(i int) error {
	history := c.store.CurrentHistory()
	if i < 0 || i >= len(history) {
		return ErrHistoryIndex
	}
	return c.SelectHistoryImage(history[i])
}

func (c *Controller) selectImage(asset domain.ImageAsset, info imgutil.ImageInfo) {
	c.mu.Lock()
	c.edit = initialEditState()
	c.edit.image = &asset
	c.edit.Original = imgutil.ToDataURL(asset)
	c.edit.ImageWidth = info.Width
	c.edit.ImageHeight = info.Height
	c.editToken++
	c.mode = ModeEdit
	c.commit()
}

// SetEditInput は編集モードのプロンプトと目標解像度（文字列のまま）を設定します。
func (c *Controller) SetEditInput(prompt, width, height string) error {
	c.mu.Lock()
	if c.edit.Status == StatusSubmitting {
		c.mu.Unlock()
		return ErrBusy
	}
	c.edit.Prompt = prompt
	c.edit.Width = width
	c.edit.Height = height
	c.commit()
	return nil
}

// SetGenerateInput は生成モードのプロンプトと縦横比を設定します。ratio が空なら 1:1 です。
func (c *Controller) SetGenerateInput(prompt string, ratio domain.AspectRatio) error {
	if ratio == "" {
		ratio = domain.AspectSquare
	}
	if !ratio.Valid() {
		return domain.NewValidationError("Unsupported aspect ratio: " + string(ratio))
	}

	c.mu.Lock()
	if c.generate.Status == StatusSubmitting {
		c.mu.Unlock()
		return ErrBusy
	}
	c.generate.Prompt = prompt
	c.generate.AspectRatio = ratio
	c.commit()
	return nil
}

// SubmitEdit は編集リクエストを実行し、完了まで待ちます。
func (c *Controller) SubmitEdit(ctx context.Context) error {
	req, token, err := c.beginEdit()
	if err != nil {
		return err
	}
	return c.finishEdit(ctx, req, token)
}

// StartEdit は検証と状態遷移を同期的に行い、API 呼び出しをバックグラウンドで実行します。
// 完了時の結果は返されたチャネルに 1 度だけ送られます。
func (c *Controller) StartEdit(ctx context.Context) (<-chan error, error) {
	req, token, err := c.beginEdit()
	if err != nil {
		return nil, err
	}
	done := make(chan error, 1)
	go func() {
		done <- c.finishEdit(ctx, req, token)
	}()
	return done, nil
}

func (c *Controller) beginEdit() (domain.EditRequest, uint64, error) {
	c.mu.Lock()
	if c.edit.Status == StatusSubmitting {
		c.mu.Unlock()
		return domain.EditRequest{}, 0, ErrBusy
	}

	req, err := c.editRequestLocked()
	if err != nil {
		c.edit.Error = err.Error()
		c.commit()
		return domain.EditRequest{}, 0, err
	}

	c.editToken++
	token := c.editToken
	c.edit.Status = StatusSubmitting
	c.edit.Error = ""
	c.edit.Result = ""
	c.commit()
	return req, token, nil
}

func (c *Controller) editRequestLocked() (domain.EditRequest, error) {
	if c.edit.image == nil {
		return domain.EditRequest{}, domain.NewValidationError("Please upload an image first.")
	}
	width, err := parseDimension(c.edit.Width, "Width")
	if err != nil {
		return domain.EditRequest{}, err
	}
	height, err := parseDimension(c.edit.Height, "Height")
	if err != nil {
		return domain.EditRequest{}, err
	}

	req := domain.EditRequest{
		Image:        *c.edit.image,
		Prompt:       c.edit.Prompt,
		TargetWidth:  width,
		TargetHeight: height,
	}
	return req, req.Validate(c.maxPrompt)
}

func (c *Controller) finishEdit(ctx context.Context, req domain.EditRequest, token uint64) error {
	url, err := c.gen.EditImage(ctx, req)

	c.mu.Lock()
	if token != c.editToken {
		c.mu.Unlock()
		slog.InfoContext(ctx, "画面がリセットされたため編集結果を破棄しました")
		return ErrStale
	}
	if err != nil {
		c.edit.Status = StatusFailed
		c.edit.Error = err.Error()
		c.commit()
		return err
	}
	c.edit.Status = StatusSucceeded
	c.edit.Result = url
	c.store.RecordResult(ctx, url)
	c.commit()
	return nil
}

// SubmitGenerate は生成リクエストを実行し、完了まで待ちます。
func (c *Controller) SubmitGenerate(ctx context.Context) error {
	req, token, err := c.beginGenerate()
	if err != nil {
		return err
	}
	return c.finishGenerate(ctx, req, token)
}

// StartGenerate は StartEdit の生成モード版です。
func (c *Controller) StartGenerate(ctx context.Context) (<-chan error, error) {
	req, token, err := c.beginGenerate()
	if err != nil {
		return nil, err
	}
	done := make(chan error, 1)
	go func() {
		done <- c.finishGenerate(ctx, req, token)
	}()
	return done, nil
}

func (c *Controller) beginGenerate() (domain.GenerateRequest, uint64, error) {
	c.mu.Lock()
	if c.generate.Status == StatusSubmitting {
		c.mu.Unlock()
		return domain.GenerateRequest{}, 0, ErrBusy
	}

	req := domain.GenerateRequest{Prompt: c.generate.Prompt, AspectRatio: c.generate.AspectRatio}
	if err := req.Validate(c.maxPrompt); err != nil {
		c.generate.Error = err.Error()
		c.commit()
		return domain.GenerateRequest{}, 0, err
	}

	c.generateToken++
	token := c.generateToken
	c.generate.Status = StatusSubmitting
	c.generate.Error = ""
	c.generate.Result = ""
	c.commit()
	return req, token, nil
}

func (c *Controller) finishGenerate(ctx context.Context, req domain.GenerateRequest, token uint64) error {
	url, err := c.gen.GenerateImage(ctx, req)

	c.mu.Lock()
	if token != c.generateToken {
		c.mu.Unlock()
		slog.InfoContext(ctx, "画面がリセットされたため生成結果を破棄しました")
		return ErrStale
	}
	if err != nil {
		c.generate.Status = StatusFailed
		c.generate.Error = err.Error()
		c.commit()
		return err
	}
	c.generate.Status = StatusSucceeded
	c.generate.Result = url
	c.store.RecordResult(ctx, url)
	c.commit()
	return nil
}

// Download は指定モードの結果画像とダウンロード用のファイル名を返します。
func (c *Controller) Download(m Mode) (string, domain.ImageAsset, error) {
	c.mu.Lock()
	var u domain.DataURL
	switch m {
	case ModeEdit:
		u = c.edit.Result
	case ModeGenerate:
		u = c.generate.Result
	}
	c.mu.Unlock()

	if u == "" {
		return "", domain.ImageAsset{}, ErrNoResult
	}
	asset, err := imgutil.Decode(u)
	if err != nil {
		return "", domain.ImageAsset{}, err
	}
	return imgutil.DownloadName(u), asset, nil
}

// parseDimension は空なら 0、それ以外は正の整数として解釈します。
func parseDimension(s, label string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, domain.NewValidationError(label + " must be a positive whole number.")
	}
	return n, nil
}
