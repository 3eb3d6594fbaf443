// Package middleware содержит HTTP middleware для сервиса airtime-desk.
package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"net/http"
	"strings"
)

// AdminAuth выполняет проверку доступа к административным маршрутам
// по bearer-токену.
type AdminAuth struct {
	token []byte
}

// NewAdminAuth создаёт middleware с указанным токеном. Пустой токен
// полностью закрывает административные маршруты.
func NewAdminAuth(token string) *AdminAuth {
	return &AdminAuth{token: []byte(token)}
}

// Middleware сравнивает токен из заголовка Authorization с настроенным.
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.token) == 0 {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		header := r.Header.Get("Authorization")
		presented, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		// сравнение через HMAC, чтобы не зависеть от длины токена
		mac := hmac.New(sha256.New, []byte("admin-auth"))
		mac.Write(a.token)
		want := mac.Sum(nil)
		mac.Reset()
		mac.Write([]byte(presented))
		got := mac.Sum(nil)

		if !hmac.Equal(want, got) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
