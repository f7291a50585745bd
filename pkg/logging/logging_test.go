package logging

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestForComponentTagsEveryLine(t *testing.T) {
	var buf bytes.Buffer
	factory := NewFactory(log.New(&buf))

	factory.ForComponent("store").Info("opened")
	factory.ForComponent("pipeline").Warn("slow phase")

	out := buf.String()
	assert.Contains(t, out, "component=store")
	assert.Contains(t, out, "component=pipeline")
}

func TestForComponentLeavesRootUntouched(t *testing.T) {
	var buf bytes.Buffer
	root := log.New(&buf)
	_ = NewFactory(root).ForComponent("vector")

	root.Info("plain line")
	assert.NotContains(t, buf.String(), "component=")
}
