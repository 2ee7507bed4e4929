// Package ggcalc plots user-defined implicit expressions on the GPU.
//
// Every expression is evaluated once per output pixel by a fragment shader
// and drawn where it changes sign. The expressions live in a [Registry] and
// reach the device through one of two backends:
//
//   - [BackendSource] inlines each expression as a WGSL switch case, splices
//     the cases into a shader template and recompiles the shader whenever
//     the set of expressions changes.
//   - [BackendBytecode] flattens each expression into (opcode, operand)
//     pairs, packs them into a memory block texture plus a jump table, and
//     runs them with a fixed interpreter shader. Edits only re-upload data.
//
// A [Renderer] tracks what changed since the last frame and performs the
// smallest rebuild that brings the device up to date:
//
//	reg := ggcalc.NewRegistry()
//	r, err := ggcalc.NewRenderer(dev, reg, ggcalc.WithBackend(ggcalc.BackendBytecode))
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	reg.Add(ggcalc.Expression{Source: "c = x*x - y;", Visible: true})
//
//	for frame := range frames {
//	    out := r.ResolvePendingRebuild()
//	    if out.Err != nil {
//	        log.Println(out.Err) // previous program stays bound
//	    }
//	    draw(r.Program())
//	}
//
// The device side is abstracted by [Device]. Package
// github.com/gogpu/ggcalc/gpu implements it on gogpu/wgpu HAL devices, and
// package github.com/gogpu/ggcalc/software renders bytecode artifacts on the
// CPU.
//
// Expression trees with both lowerings are provided by package
// github.com/gogpu/ggcalc/expr.
package ggcalc
