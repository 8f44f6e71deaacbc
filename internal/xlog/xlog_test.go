package xlog

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureMapsVerbosityToLevel(t *testing.T) {
	cases := []struct {
		verbosity int
		want      logrus.Level
	}{
		{0, logrus.PanicLevel},
		{1, logrus.FatalLevel},
		{2, logrus.ErrorLevel},
		{3, logrus.WarnLevel},
		{4, logrus.InfoLevel},
		{5, logrus.DebugLevel},
		{6, logrus.TraceLevel},
		{99, logrus.TraceLevel},
	}
	for _, c := range cases {
		require.NoError(t, Configure(c.verbosity, "text", false))
		assert.Equal(t, c.want, root.GetLevel())
	}
}

func TestConfigureRejectsUnknownFormat(t *testing.T) {
	err := Configure(3, "xml", false)
	assert.Error(t, err)
}

func TestConfigureAcceptsJSONFormat(t *testing.T) {
	require.NoError(t, Configure(4, "json", false))
	_, ok := root.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)
}

func TestEnableSentryWithBlankDSNIsNoop(t *testing.T) {
	before := len(root.Hooks)
	require.NoError(t, EnableSentry(""))
	assert.Len(t, root.Hooks, before, "a blank DSN must not attach a hook")
}

func TestNewTagsComponentField(t *testing.T) {
	l := New("controller")
	assert.Equal(t, "controller", l.Data["component"])
}
