package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shouni/gemini-image-studio/pkg/domain"
)

// ErrUnknownAccount は候補に存在しないアカウントを指定した場合のエラーです。
var ErrUnknownAccount = errors.New("unknown account")

// IdentityProvider はログイン候補の取得と利用者の特定を抽象化します。
// 本番では実際の認証に差し替えても Store の契約は変わりません。
type IdentityProvider interface {
	Accounts(ctx context.Context) ([]domain.User, error)
	Lookup(ctx context.Context, email string) (domain.User, error)
}

// MockIdentityProvider は固定のアカウント一覧を返す擬似ログインです。
type MockIdentityProvider struct {
	users []domain.User
}

// NewMockIdentityProvider は users を候補とするプロバイダを作成します。
// users が空なら既定の 3 アカウントを使います。
func NewMockIdentityProvider(users ...domain.User) *MockIdentityProvider {
	if len(users) == 0 {
		users = []domain.User{
			{Name: "Alex Johnson", Email: "alex.j@example.com", Avatar: "AJ"},
			{Name: "Maria Garcia", Email: "maria.g@example.com", Avatar: "MG"},
			{Name: "Kenji Tanaka", Email: "kenji.t@example.com", Avatar: "KT"},
		}
	}
	return &MockIdentityProvider{users: users}
}

func (p *MockIdentityProvider) Accounts(_ context.Context) ([]domain.User, error) {
	out := make([]domain.User, len(p.users))
	copy(out, p.users)
	return out, nil
}

// Lookup はメールアドレス（大文字小文字は区別しない）でアカウントを探します。
func (p *MockIdentityProvider) Lookup(_ context.Context, email string) (domain.User, error) {
	for _, u := range p.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return u, nil
		}
	}
	return domain.User{}, fmt.Errorf("%w: %s", ErrUnknownAccount, email)
}
