package sys

import (
	"fmt"
	"path/filepath"
	"runtime"
	"runtime/debug"

	"github.com/placeloop/go-common/logger"
)

// panicError turns a recovered panic value into an error annotated with the
// panicking call site. skip counts stack frames above the caller.
func panicError(skip int, v interface{}) error {
	var err error
	switch e := v.(type) {
	case error:
		err = e
	default:
		err = fmt.Errorf("%v", v)
	}
	if _, file, line, ok := runtime.Caller(skip + 1); ok {
		return fmt.Errorf("panic: %w (%s:%d)", err, filepath.Base(file), line)
	}
	return fmt.Errorf("panic: %w", err)
}

// RecoverPanic logs a recovered panic with its stack trace instead of
// crashing the process. Use directly in a defer statement.
func RecoverPanic(log logger.Logger) {
	if r := recover(); r != nil {
		log.Error("%s\n%s", panicError(1, r), string(debug.Stack()))
	}
}
