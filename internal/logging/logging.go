package logging

import (
	"io"
	"os"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
)

// Name is the root logger name.
const Name = "authflow"

// New creates a JSON logger writing to stdout at the provided level. If the
// level string is invalid it defaults to info.
func New(level string) *glog.BaseLogger {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter is New writing to w. Errors logged under the "error" key
// are expanded with their go-errors code, text code and category.
func NewWithWriter(w io.Writer, level string) *glog.BaseLogger {
	return glog.NewLogger(
		glog.WithLoggerTypeJSON(),
		glog.WithLevel(level),
		glog.WithName(Name),
		glog.WithAddSource(false),
		glog.WithWriter(w),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)
}

// Discard returns a logger that drops all output. Useful for tests.
func Discard() glog.Logger {
	return glog.Nop()
}
