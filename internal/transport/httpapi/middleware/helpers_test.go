package middleware_test

import (
	"io"

	"github.com/earnx/earnx/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New("development", io.Discard)
}
