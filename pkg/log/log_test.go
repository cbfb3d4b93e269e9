package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// 未调用 Init 时（例如单测环境），各级别的日志调用都必须可用。
func TestLogUsableBeforeInit(t *testing.T) {
	assert.NotPanics(t, func() {
		Info("boot")
		Infof("boot %d", 1)
		Infow("boot", "key", "value")
		Warnf("warn %s", "x")
		Error("err", nil)
		Errorf("err %d", 2)
		Sync()
	})
}
