package ggcalc

import (
	_ "embed"
)

//go:embed shaders/common.wgsl
var commonShaderSource string

//go:embed shaders/source_eval.wgsl
var sourceEvalShaderSource string

//go:embed shaders/bytecode_eval.wgsl
var bytecodeEvalShaderSource string

// DefaultSourceTemplate returns the shader template of the source backend.
// It contains the case placeholder exactly once.
func DefaultSourceTemplate() string {
	return commonShaderSource + sourceEvalShaderSource
}

// DefaultBytecodeShader returns the interpreter shader of the bytecode
// backend. It does not change with the expressions.
func DefaultBytecodeShader() string {
	return commonShaderSource + bytecodeEvalShaderSource
}
