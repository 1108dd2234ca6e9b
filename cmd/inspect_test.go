package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemashushu/ancvm/loader"
)

func TestInspectCommandRendersJSON(t *testing.T) {
	t.Parallel()
	gs, outBuf, _ := NewTestGlobalState()

	writeImage(t, gs, "app.ancm",
		typeSection([2][]loader.ValueType{nil, {loader.ValueTypeI32}}),
		functionSection(fn{typeIndex: 0, code: []byte{0x00}}),
		commonPropertySection("demo", 0, "libfoo"),
	)

	gs.Args = []string{"ancvm", "image", "inspect", "app.ancm"}
	assert.Equal(t, 0, Execute(gs))

	var report inspectReport
	require.NoError(t, json.Unmarshal(outBuf.Bytes(), &report))
	assert.Equal(t, "demo", report.Name)
	assert.Equal(t, 1, report.TypeCount)
	assert.Equal(t, 1, report.FunctionCount)
	assert.Equal(t, []string{"libfoo"}, report.ImportModules)
	require.NotNil(t, report.EntryIndex)
	assert.Equal(t, uint32(0), *report.EntryIndex)
}

func TestInspectCommandQuery(t *testing.T) {
	t.Parallel()
	gs, outBuf, _ := NewTestGlobalState()

	writeImage(t, gs, "app.ancm",
		typeSection([2][]loader.ValueType{nil, {loader.ValueTypeI32}}),
		functionSection(fn{typeIndex: 0, code: []byte{0x00}}),
		commonPropertySection("demo", loader.NoFunctionIndex),
	)

	gs.Args = []string{"ancvm", "image", "inspect", "app.ancm", "--query", "name"}
	assert.Equal(t, 0, Execute(gs))
	assert.Equal(t, "demo", strings.TrimSpace(outBuf.String()))
}
