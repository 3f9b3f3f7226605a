package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shouni/gemini-image-studio/pkg/domain"
)

// normalizeReason は SAFETY_VIOLATION のような理由コードを "safety violation" に整形します。
func normalizeReason(reason string) string {
	return strings.ToLower(strings.ReplaceAll(reason, "_", " "))
}

// recoverAsUnknown はプロバイダ内の panic を UnknownError に変換します。
// defer で named return の err を渡して使います。
func recoverAsUnknown(ctx context.Context, err *error, msg string) {
	r := recover()
	if r == nil {
		return
	}
	slog.ErrorContext(ctx, "画像APIの呼び出し中に panic が発生しました", "panic", fmt.Sprint(r))
	*err = domain.NewUnknownError(msg)
}

// truncate はログ出力用に文字列を rune 単位で切り詰めます。
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
