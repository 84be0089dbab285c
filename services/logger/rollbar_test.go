package logsvc

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nujoom/school/core"
)

func TestRollbarLogger(t *testing.T) {
	conf := core.NewTestConfig()
	std := NewStdLogger(conf)
	buf := new(bytes.Buffer)
	std.SetOutput(buf)
	std.SetFormatter(&logrus.JSONFormatter{})

	logger := NewRollbarLogger(std, "points", conf)
	logger.Enable(false)
	logger.Warn("balance calculator failed", errors.New("boom"), map[string]interface{}{"owner_id": "s-1"})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "balance calculator failed", line["msg"])
	assert.Equal(t, "warning", line["level"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "s-1", line["owner_id"])
	assert.Equal(t, "points", line["component"])
}

func TestNewStdLogger(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Debug = true
	assert.Equal(t, logrus.DebugLevel, NewStdLogger(conf).GetLevel())

	conf.Debug = false
	std := NewStdLogger(conf)
	assert.Equal(t, logrus.InfoLevel, std.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, std.Formatter)
}
