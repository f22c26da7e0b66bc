package detect

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func testLogger(t *testing.T) logrus.FieldLogger {
	t.Helper()
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
