package session

import "context"

// HistoryKeyPrefix は履歴を永続化するキーの接頭辞です。キーは imageHistory_<email> になります。
const HistoryKeyPrefix = "imageHistory_"

// HistoryKey は利用者ごとの履歴キーを返します。
func HistoryKey(email string) string {
	return HistoryKeyPrefix + email
}

// Storage は履歴を保存する永続ストレージを抽象化するインターフェースです。
type Storage interface {
	// Get はキーに紐づく値を返します。キーが存在しない場合は ok=false です。
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set はキーに値を保存します。
	Set(ctx context.Context, key, value string) error
}
