// Package storage は履歴を保存するキー・バリューストレージの実装を提供します。
// いずれも session.Storage を満たします。
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/shouni/gemini-image-studio/pkg/session"
)

// バックエンド名
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Options は Open に渡すバックエンド設定です。
type Options struct {
	Backend string

	// file バックエンドのディレクトリ、sqlite バックエンドのデータベースファイル
	Path string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Backend は session.Storage に Close を加えたものです。
type Backend interface {
	session.Storage
	io.Closer
}

// Open は Options.Backend に応じたストレージを開きます。
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendFile, "":
		return NewFile(opts.Path)
	case BackendRedis:
		return NewRedis(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
	case BackendSQLite:
		return NewSQLite(ctx, opts.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", opts.Backend)
	}
}
