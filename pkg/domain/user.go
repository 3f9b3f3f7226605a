package domain

// User はログイン中の利用者です。Email が識別キーになります。
type User struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"` // URL またはイニシャル
}
