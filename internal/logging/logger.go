package logging

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Params struct {
	Level    string
	File     string
	ToStdout bool
	JSON     bool
}

// Setup configures the process-wide logrus logger. Without a file, logs go
// to stderr so they never mix with frames written to stdout.
func Setup(params Params) io.Closer {
	if params.JSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	log.SetLevel(GetLevel(params.Level))

	if params.File == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}
	}

	if !strings.HasSuffix(params.File, ".log") {
		params.File += ".log"
	}

	rotating := &lumberjack.Logger{
		Filename:   params.File,
		MaxSize:    20, // megabytes
		MaxBackups: 5,
		LocalTime:  false,
		Compress:   true,
	}

	if params.ToStdout {
		log.SetOutput(NewCombinedWriter(os.Stderr, rotating))
	} else {
		log.SetOutput(rotating)
	}
	return rotating
}

// GetLevel maps a level name to a logrus level. Unknown names mean info.
func GetLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "trace":
		return log.TraceLevel
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// CombinedWriter writes to every writer, collecting the errors of those
// that fail instead of stopping at the first
type CombinedWriter struct {
	Writers []io.Writer
}

func NewCombinedWriter(writers ...io.Writer) *CombinedWriter {
	return &CombinedWriter{Writers: writers}
}

func (cw *CombinedWriter) Write(p []byte) (int, error) {
	var err error
	for _, w := range cw.Writers {
		if _, werr := w.Write(p); werr != nil {
			err = multierr.Append(err, werr)
		}
	}
	return len(p), err
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
