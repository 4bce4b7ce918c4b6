package httptool

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// StringBody 读取整个请求体，去掉首尾空白
func StringBody(r *http.Request) (string, error) {
	bytes, err := io.ReadAll(r.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(bytes)), nil
}

func JsonBody[T any](r *http.Request) (T, error) {
	var t T
	bytes, err := io.ReadAll(r.Body)
	if err != nil {
		return t, err
	}
	if err := json.Unmarshal(bytes, &t); err != nil {
		return t, fmt.Errorf("decode json body: %w", err)
	}
	return t, nil
}

func WriteJson(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
