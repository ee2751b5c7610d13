package serviceutil

import (
	"log/slog"
	"os"
)

// Fatal logs the error and exits the process with a non-zero status.
func Fatal(message string, err error) {
	slog.Error(message, "err", err)
	os.Exit(1)
}
