package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/DevAnupShourya/snap-stash/internal/model"
)

// Envelope はAPIレスポンスの統一フォーマット。
// 全エンドポイントで success / message / payload の3キーを使用する。
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Payload interface{} `json:"payload"`
}

// errorPayload はエラーレスポンスのpayload部。
type errorPayload struct {
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// WriteSuccess は成功レスポンスを統一フォーマットで書き込む。
func WriteSuccess(w http.ResponseWriter, statusCode int, message string, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Envelope{
		Success: true,
		Message: message,
		Payload: payload,
	})
}

// WriteEnvelope は任意のEnvelopeを指定ステータスで書き込む。
func WriteEnvelope(w http.ResponseWriter, statusCode int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(env)
}

// WriteAPIError はAPIErrorを対応するHTTPステータスで書き込む。
func WriteAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(MapAPIErrorToHTTPStatus(apiErr))
	json.NewEncoder(w).Encode(Envelope{
		Success: false,
		Message: apiErr.Message,
		Payload: errorPayload{Code: apiErr.Code, Field: apiErr.Field},
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(Envelope{
		Success: false,
		Message: "Something went wrong",
		Payload: errorPayload{Code: model.ErrCodeInternal},
	})
}

// MapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func MapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidationFailed, model.ErrCodeInvalidReference:
		return http.StatusBadRequest
	case model.ErrCodeInvalidPIN, model.ErrCodeAuthRequired, model.ErrCodeSessionExpired:
		return http.StatusUnauthorized
	case model.ErrCodeCategoryNotFound, model.ErrCodeTaskNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateCategory:
		return http.StatusConflict
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
