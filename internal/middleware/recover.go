package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/cantonese-tutor/backend/pkg/utils"
)

const serverErrorMessage = "Server error, please try again."

// Recover 捕获 handler 中的 panic，返回固定格式的 500 响应。
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			log.Printf("[http] panic request_id=%s %s %s: %v\n%s",
				chimw.GetReqID(r.Context()), r.Method, r.URL.Path, v, debug.Stack())
			utils.RespondError(w, http.StatusInternalServerError, utils.ErrCodeInternal, serverErrorMessage)
		}()
		next.ServeHTTP(w, r)
	})
}
