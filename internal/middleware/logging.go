// internal/middleware/logging.go

package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// statusRecorder captures the status code written by the wrapped handler
// so the request log can carry it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// LogMiddleware logs every HTTP request served by the game API: method,
// path, response status and duration.
func LogMiddleware(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start),
				"remote":   r.RemoteAddr,
			}).Info("http request")
		})
	}
}

// LogWebSocketConnect logs an accepted game WebSocket, tagged with the
// session and user it is bound to.
func LogWebSocketConnect(logger *logrus.Logger, remoteAddr, gameID string, userID int64) {
	logger.WithFields(logrus.Fields{
		"remote": remoteAddr,
		"gameId": gameID,
		"userId": userID,
	}).Info("websocket connected")
}

// LogWebSocketDisconnect logs the end of a game WebSocket. A nil err
// means a clean close.
func LogWebSocketDisconnect(logger *logrus.Logger, remoteAddr, gameID string, userID int64, err error) {
	fields := logrus.Fields{
		"remote": remoteAddr,
		"gameId": gameID,
		"userId": userID,
	}
	if err != nil {
		fields["error"] = err
	}
	logger.WithFields(fields).Info("websocket disconnected")
}
