package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/kaiwa/internal/middleware"
	"github.com/hitoshi/kaiwa/internal/model"
)

// UserFinder はユーザーディレクトリ検索に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// UserHandler はユーザーディレクトリのHTTPハンドラー。
// 会話相手の検索（メールアドレスによるルックアップ）を提供する。
type UserHandler struct {
	finder UserFinder
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(finder UserFinder) *UserHandler {
	return &UserHandler{finder: finder}
}

// FindByEmail はメールアドレスでユーザーを検索する。
// GET /api/users/email/{email}
func (h *UserHandler) FindByEmail(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.UserIDFromContext(r.Context()); err != nil {
		writeUnauthorized(w)
		return
	}

	email := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "email")))
	if email == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "メールアドレスが指定されていません。",
			Category: "validation",
			Action:   "検索するメールアドレスを指定してください。",
		})
		return
	}

	user, err := h.finder.FindByEmail(r.Context(), email)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if user == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError())
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}
