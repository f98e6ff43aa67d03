package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithContext_CarriesFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	require.NoError(t, Setup("debug", "json"))
	defer SetOutput(&bytes.Buffer{})

	ctx := NewContext(context.Background(), logrus.Fields{"kind": "door"})
	ctx = NewContext(ctx, logrus.Fields{"container_id": "C1"})
	Infof(ctx, "assigned %d resources", 2)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "assigned 2 resources", line["message"])
	assert.Equal(t, "info", line["severity"])
	assert.Equal(t, "door", line["kind"])
	assert.Equal(t, "C1", line["container_id"])
	assert.Contains(t, line, "timestamp")
}

func TestSetup_RejectsUnknownLevel(t *testing.T) {
	assert.Error(t, Setup("loud", "json"))
}
