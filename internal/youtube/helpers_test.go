// Path: internal/youtube/helpers_test.go
package youtube

import (
	"io"
	"log/slog"
)

func testDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
