// Package onnx reads the header of serialized ONNX models.
//
// Only the fields needed to confirm an export produced a usable model are
// decoded: IR version, producer, opset imports and a summary of the main
// graph. Everything else is skipped at the wire level, so no generated
// ONNX bindings are required.
package onnx

import (
	"errors"
	"fmt"
	"os"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	ErrInvalidModel = errors.New("not a valid ONNX model")
	ErrNoGraph      = errors.New("ONNX model has no graph")
)

// ModelProto field numbers.
const (
	fieldIRVersion       protowire.Number = 1
	fieldProducerName    protowire.Number = 2
	fieldProducerVersion protowire.Number = 3
	fieldDomain          protowire.Number = 4
	fieldModelVersion    protowire.Number = 5
	fieldGraph           protowire.Number = 7
	fieldOpsetImport     protowire.Number = 8
)

// GraphProto field numbers.
const (
	fieldGraphNode        protowire.Number = 1
	fieldGraphName        protowire.Number = 2
	fieldGraphInitializer protowire.Number = 5
	fieldGraphInput       protowire.Number = 11
	fieldGraphOutput      protowire.Number = 12
)

// Opset is an operator set import.
type Opset struct {
	Domain  string
	Version int64
}

// Graph summarizes the main graph of a model.
type Graph struct {
	Name         string
	Inputs       []string
	Outputs      []string
	Nodes        int
	Initializers int
}

// Info is the decoded model header.
type Info struct {
	ProducerName    string
	ProducerVersion string
	Domain          string
	Opsets          []Opset
	Graph           Graph
	IRVersion       int64
	ModelVersion    int64
}

// DefaultOpset returns the version of the default (ai.onnx) operator set,
// or 0 when the model does not import it.
func (i *Info) DefaultOpset() int64 {
	for _, o := range i.Opsets {
		if o.Domain == "" || o.Domain == "ai.onnx" {
			return o.Version
		}
	}
	return 0
}

// Inspect reads and decodes the model at path.
func Inspect(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("onnx: read model: %w", err)
	}

	return Parse(data)
}

// Parse decodes a serialized ModelProto.
func Parse(data []byte) (*Info, error) {
	info := &Info{}
	hasGraph := false

	err := walk(data, func(num protowire.Number, typ protowire.Type, v []byte, n uint64) error {
		switch {
		case num == fieldIRVersion && typ == protowire.VarintType:
			info.IRVersion = int64(n)
		case num == fieldModelVersion && typ == protowire.VarintType:
			info.ModelVersion = int64(n)
		case num == fieldProducerName && typ == protowire.BytesType:
			info.ProducerName = string(v)
		case num == fieldProducerVersion && typ == protowire.BytesType:
			info.ProducerVersion = string(v)
		case num == fieldDomain && typ == protowire.BytesType:
			info.Domain = string(v)
		case num == fieldOpsetImport && typ == protowire.BytesType:
			opset, err := parseOpset(v)
			if err != nil {
				return err
			}
			info.Opsets = append(info.Opsets, opset)
		case num == fieldGraph && typ == protowire.BytesType:
			graph, err := parseGraph(v)
			if err != nil {
				return err
			}
			info.Graph = graph
			hasGraph = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidModel, err)
	}

	if info.IRVersion <= 0 {
		return nil, fmt.Errorf("%w: missing IR version", ErrInvalidModel)
	}

	if !hasGraph {
		return nil, ErrNoGraph
	}

	return info, nil
}

func parseOpset(data []byte) (Opset, error) {
	var opset Opset
	err := walk(data, func(num protowire.Number, typ protowire.Type, v []byte, n uint64) error {
		switch {
		case num == 1 && typ == protowire.BytesType:
			opset.Domain = string(v)
		case num == 2 && typ == protowire.VarintType:
			opset.Version = int64(n)
		}
		return nil
	})
	return opset, err
}

func parseGraph(data []byte) (Graph, error) {
	var graph Graph
	err := walk(data, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if typ != protowire.BytesType {
			return nil
		}

		switch num {
		case fieldGraphNode:
			graph.Nodes++
		case fieldGraphInitializer:
			graph.Initializers++
		case fieldGraphName:
			graph.Name = string(v)
		case fieldGraphInput, fieldGraphOutput:
			name, err := valueInfoName(v)
			if err != nil {
				return err
			}
			if num == fieldGraphInput {
				graph.Inputs = append(graph.Inputs, name)
			} else {
				graph.Outputs = append(graph.Outputs, name)
			}
		}
		return nil
	})
	return graph, err
}

func valueInfoName(data []byte) (string, error) {
	var name string
	err := walk(data, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if num == 1 && typ == protowire.BytesType {
			name = string(v)
		}
		return nil
	})
	return name, err
}

// walk iterates over the top-level fields of a message. Length-delimited
// values are passed as v, varints as n; other wire types are skipped.
func walk(data []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, n uint64) error) error {
	for len(data) > 0 {
		num, typ, tagLen := protowire.ConsumeTag(data)
		if tagLen < 0 {
			return protowire.ParseError(tagLen)
		}
		data = data[tagLen:]

		var (
			v      []byte
			n      uint64
			valLen int
		)
		switch typ {
		case protowire.VarintType:
			n, valLen = protowire.ConsumeVarint(data)
		case protowire.BytesType:
			v, valLen = protowire.ConsumeBytes(data)
		default:
			valLen = protowire.ConsumeFieldValue(num, typ, data)
		}
		if valLen < 0 {
			return protowire.ParseError(valLen)
		}
		data = data[valLen:]

		if err := fn(num, typ, v, n); err != nil {
			return err
		}
	}

	return nil
}
