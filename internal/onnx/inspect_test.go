package onnx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func buildModel(withGraph bool) []byte {
	var opset []byte
	opset = appendString(opset, 1, "")
	opset = appendVarint(opset, 2, 12)

	var customOpset []byte
	customOpset = appendString(customOpset, 1, "com.microsoft")
	customOpset = appendVarint(customOpset, 2, 1)

	var graph []byte
	graph = appendMessage(graph, fieldGraphNode, []byte{})
	graph = appendMessage(graph, fieldGraphNode, []byte{})
	graph = appendString(graph, fieldGraphName, "main_graph")
	graph = appendMessage(graph, fieldGraphInitializer, []byte{})
	graph = appendMessage(graph, fieldGraphInput, appendString(nil, 1, "images"))
	graph = appendMessage(graph, fieldGraphOutput, appendString(nil, 1, "output0"))

	var model []byte
	model = appendVarint(model, fieldIRVersion, 7)
	model = appendString(model, fieldProducerName, "pytorch")
	model = appendString(model, fieldProducerVersion, "2.4.0")
	// doc_string (6) is not decoded and must be skipped.
	model = appendString(model, 6, "exported by ultralytics")
	// A fixed32 field exercises the generic skip path.
	model = protowire.AppendTag(model, 99, protowire.Fixed32Type)
	model = protowire.AppendFixed32(model, 42)
	if withGraph {
		model = appendMessage(model, fieldGraph, graph)
	}
	model = appendMessage(model, fieldOpsetImport, customOpset)
	model = appendMessage(model, fieldOpsetImport, opset)
	return model
}

func TestParse(t *testing.T) {
	info, err := Parse(buildModel(true))
	require.NoError(t, err)

	assert.Equal(t, int64(7), info.IRVersion)
	assert.Equal(t, "pytorch", info.ProducerName)
	assert.Equal(t, "2.4.0", info.ProducerVersion)
	assert.Equal(t, int64(12), info.DefaultOpset())
	assert.Len(t, info.Opsets, 2)
	assert.Equal(t, "main_graph", info.Graph.Name)
	assert.Equal(t, 2, info.Graph.Nodes)
	assert.Equal(t, 1, info.Graph.Initializers)
	assert.Equal(t, []string{"images"}, info.Graph.Inputs)
	assert.Equal(t, []string{"output0"}, info.Graph.Outputs)
}

func TestParse_NoGraph(t *testing.T) {
	_, err := Parse(buildModel(false))
	assert.ErrorIs(t, err, ErrNoGraph)
}

func TestParse_Garbage(t *testing.T) {
	_, err := Parse([]byte("PK\x03\x04 this is a zip, not a model"))
	assert.ErrorIs(t, err, ErrInvalidModel)

	_, err = Parse(nil)
	assert.ErrorIs(t, err, ErrInvalidModel)
}

func TestParse_Truncated(t *testing.T) {
	data := buildModel(true)

	_, err := Parse(data[:len(data)-3])
	assert.ErrorIs(t, err, ErrInvalidModel)
}

func TestInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yolo11n.onnx")
	require.NoError(t, os.WriteFile(path, buildModel(true), 0o644))

	info, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, int64(12), info.DefaultOpset())

	_, err = Inspect(filepath.Join(t.TempDir(), "missing.onnx"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
