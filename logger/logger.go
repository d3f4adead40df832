package logger

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	logger *logrus.Logger
	fields logrus.Fields
}

// NewLogger writes JSON lines to filename and mirrors them to stdout.
func NewLogger(filename, level string) (*Logger, error) {
	dirname := filepath.Dir(filename)
	_, err := os.Stat(dirname)

	if err != nil {
		err = os.MkdirAll(dirname, 0755)
		if err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(io.MultiWriter(os.Stdout, file))
	logger.SetLevel(lvl)

	return &Logger{
		logger: logger,
	}, nil
}

// New wraps an existing logrus logger, e.g. the one returned by
// logrus/hooks/test.NewNullLogger.
func New(l *logrus.Logger) *Logger {
	return &Logger{logger: l}
}

// With returns a child logger that adds the given key/value pairs to every entry.
func (l *Logger) With(extras ...any) *Logger {
	fields := make(logrus.Fields, len(l.fields)+len(extras)/2)
	for k, v := range l.fields {
		fields[k] = v
	}
	for k, v := range convertToFields(extras) {
		fields[k] = v
	}
	return &Logger{logger: l.logger, fields: fields}
}

func convertToFields(values []any) (fields logrus.Fields) {
	fields = make(logrus.Fields)
	for i := 0; i <= len(values)-2; i += 2 {
		key, ok := values[i].(string)
		if !ok {
			key = fmt.Sprint(values[i])
		}
		fields[key] = values[i+1]
	}
	return
}

func (l *Logger) entry(extras []any) *logrus.Entry {
	e := logrus.NewEntry(l.logger)
	if len(l.fields) > 0 {
		e = e.WithFields(l.fields)
	}
	if len(extras) > 0 && len(extras)%2 == 0 {
		e = e.WithFields(convertToFields(extras))
	}
	return e
}

// LogRequest : Logging Middleware
func (l *Logger) LogRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		l.entry(nil).WithFields(logrus.Fields{
			"method": r.Method,
			"uri":    r.RequestURI,
			"status": w.Header().Get("status"),
		}).Info("request received")
	})
}

func (l *Logger) LogError(err error, msg string, extras ...any) {
	l.entry(extras).WithField("message", msg).Errorln(err)
}

func (l *Logger) LogWarning(err error, msg string, extras ...any) {
	l.entry(extras).WithField("message", msg).Warnln(err)
}

func (l *Logger) LogInfo(msg string, extras ...any) {
	l.entry(extras).Infoln(msg)
}

func (l *Logger) LogDebug(msg string, extras ...any) {
	l.entry(extras).Debugln(msg)
}
