package bridge

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/scriptbridge/internal/native"
)

// Eval compiles and runs code, returning the host form of its completion
// value. file names the code in positions; an empty name gets a generated
// program_NNNNN name. Script failures are *EvalError and are also written to
// the context's stderr channel.
func (c *Context) Eval(ctx context.Context, code, file string) (any, error) {
	var out any
	err := c.guard(ctx, OpEval, func(s *opScope) error {
		if file == "" {
			file = fmt.Sprintf("program_%05d", c.programs)
		}
		c.programs++

		prg, err := goja.Compile(file, code, false)
		if err != nil {
			return c.report(compileError(file, code, err))
		}
		v, err := c.vm.RunProgram(prg)
		if err != nil {
			return c.report(runError(s, file, code, err))
		}
		h, err := c.marshaler.ToHostContext(s.ctx, v)
		out = h
		return err
	})
	return out, err
}

// report mirrors an evaluation failure on the console before returning it.
func (c *Context) report(e *EvalError) error {
	c.console.Output(native.Stderr, e.Error())
	return e
}

// parser errors read "file: Line 3:14 Unexpected token ..." and may end with
// "(and N more errors)".
var parserErrorRe = regexp.MustCompile(`^.*?: Line (\d+):(\d+) (.*?)(?: \(and \d+ more errors\))?$`)

func compileError(file, code string, err error) *EvalError {
	e := &EvalError{File: file, Message: err.Error(), Err: ErrSyntax}

	var se *goja.CompilerSyntaxError
	if errors.As(err, &se) {
		e.Message = se.Message
		if se.File != nil {
			pos := se.File.Position(se.Offset)
			e.Line, e.Column = pos.Line, pos.Column
		}
	}
	if e.Line == 0 {
		if m := parserErrorRe.FindStringSubmatch(e.Message); m != nil {
			e.Line, _ = strconv.Atoi(m[1])
			e.Column, _ = strconv.Atoi(m[2])
			e.Message = m[3]
		}
	}
	e.Source = sourceLine(code, e.Line)
	return e
}

func runError(s *opScope, file, code string, err error) *EvalError {
	e := &EvalError{File: file, Message: err.Error(), Err: ErrException}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause := s.interrupted(); cause != nil {
			e.Err = cause
			e.Message = cause.Error()
		}
		return e
	}

	var ex *goja.Exception
	if errors.As(err, &ex) {
		if v := ex.Value(); v != nil {
			e.Message = v.String()
		}
		e.Line, e.Column = framePosition(ex.String(), file)
		e.Source = sourceLine(code, e.Line)
	}
	return e
}

// framePosition finds the first "file:line:col" in a stack trace.
func framePosition(trace, file string) (line, col int) {
	re, err := regexp.Compile(regexp.QuoteMeta(file) + `:(\d+):(\d+)`)
	if err != nil {
		return 0, 0
	}
	m := re.FindStringSubmatch(trace)
	if m == nil {
		return 0, 0
	}
	line, _ = strconv.Atoi(m[1])
	col, _ = strconv.Atoi(m[2])
	return line, col
}

func sourceLine(code string, line int) string {
	if line <= 0 {
		return ""
	}
	lines := strings.Split(code, "\n")
	if line > len(lines) {
		return ""
	}
	return strings.TrimRight(lines[line-1], "\r")
}
