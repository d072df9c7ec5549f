package optimizer

import (
	"fmt"
	"slices"
)

// Op names one kernel family. Profiles, tuning state and the dispatch
// table are keyed by it.
type Op string

const (
	OpAdd       Op = "add"
	OpMul       Op = "mul"
	OpFMA       Op = "fma"
	OpSigmoid   Op = "sigmoid"
	OpTanh      Op = "tanh"
	OpReLU      Op = "relu"
	OpGELU      Op = "gelu"
	OpSwish     Op = "swish"
	OpMish      Op = "mish"
	OpMatVec    Op = "matvec"
	OpMatMul    Op = "matmul"
	OpConv2D    Op = "conv2d"
	OpMaxPool2D Op = "maxpool2d"
	OpAvgPool2D Op = "avgpool2d"
	OpSum       Op = "sum"
	OpMax       Op = "max"
	OpMin       Op = "min"
	OpNormalize Op = "normalize"
	OpLayerNorm Op = "layernorm"
	OpSoftmax   Op = "softmax"
	OpAttention Op = "attention"
)

// Ops lists every operation in a stable order.
var Ops = []Op{
	OpAdd, OpMul, OpFMA,
	OpSigmoid, OpTanh, OpReLU, OpGELU, OpSwish, OpMish,
	OpMatVec, OpMatMul,
	OpConv2D, OpMaxPool2D, OpAvgPool2D,
	OpSum, OpMax, OpMin,
	OpNormalize, OpLayerNorm, OpSoftmax, OpAttention,
}

// Valid reports whether op is a known operation.
func (op Op) Valid() bool {
	return slices.Contains(Ops, op)
}

func (op Op) String() string { return string(op) }

// Precision selects the element type of a kernel.
type Precision int

const (
	Float32 Precision = iota
	Float64
)

func (p Precision) String() string {
	switch p {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	}
	return fmt.Sprintf("Precision(%d)", int(p))
}

// ParsePrecision accepts "float32"/"f32"/"single" and "float64"/"f64"/"double".
func ParsePrecision(s string) (Precision, error) {
	switch s {
	case "float32", "f32", "single":
		return Float32, nil
	case "float64", "f64", "double":
		return Float64, nil
	}
	return 0, fmt.Errorf("optimizer: unknown precision %q", s)
}
