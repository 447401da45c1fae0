package preview

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/reconquest/karma-go"
	"github.com/reconquest/pkg/log"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(writer http.ResponseWriter, status int, value interface{}) {
	writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	writer.WriteHeader(status)

	err := json.NewEncoder(writer).Encode(value)
	if err != nil {
		log.Errorf(err, "unable to write response")
	}
}

func writeError(writer http.ResponseWriter, status int, err error) {
	writeJSON(writer, status, errorResponse{Error: err.Error()})
}

func readBody(request *http.Request) (string, error) {
	data, err := io.ReadAll(io.LimitReader(request.Body, maxEditSize+1))
	if err != nil {
		return "", karma.Format(err, "unable to read request body")
	}

	if len(data) > maxEditSize {
		return "", karma.Describe("limit", maxEditSize).
			Format(nil, "source is too large")
	}

	return strings.ReplaceAll(string(data), "\r\n", "\n"), nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		wrapped := middleware.NewWrapResponseWriter(writer, request.ProtoMajor)

		start := time.Now()
		next.ServeHTTP(wrapped, request)

		log.Debugf(
			nil,
			"%s %s %d %dB %v",
			request.Method, request.URL, wrapped.Status(),
			wrapped.BytesWritten(), time.Since(start),
		)
	})
}

// logWriter routes net/http server errors into the application log.
type logWriter struct{}

func (logWriter) Write(data []byte) (int, error) {
	log.Warning(strings.TrimSpace(string(data)))

	return len(data), nil
}
