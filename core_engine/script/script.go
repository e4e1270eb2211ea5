// Package script plays the guest side of a board from a Lua file: register
// loads and stores, the passage of time, and checks on what the CPU sees.
package script

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"example.com/mcu-vpic/core_engine"
	"example.com/mcu-vpic/core_engine/devices"
	"example.com/mcu-vpic/core_engine/intc"
)

// ErrExpectation is returned when a script ran to completion but at least one
// expect() call failed.
var ErrExpectation = errors.New("script: expectation failed")

// Runner executes scripts against one board. A Runner is not reusable across
// goroutines.
type Runner struct {
	board    *core_engine.Board
	out      io.Writer
	logger   *log.Logger
	state    *lua.LState
	serial   []*bytes.Buffer
	failures []string
}

// NewRunner prepares a Lua state bound to board. print() and trace output go
// to out. Guest serial output is captured per port and also copied to out.
func NewRunner(board *core_engine.Board, out io.Writer, logger *log.Logger) *Runner {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = log.Default()
	}
	r := &Runner{
		board:  board,
		out:    out,
		logger: logger,
		state:  lua.NewState(),
	}
	for n := 0; n < board.SerialPorts(); n++ {
		buf := &bytes.Buffer{}
		port, err := board.Serial(n)
		if err != nil {
			break
		}
		port.SetOutput(io.MultiWriter(buf, out))
		r.serial = append(r.serial, buf)
	}
	r.register()
	return r
}

func (r *Runner) Close() { r.state.Close() }

// Failures lists the messages of failed expectations so far.
func (r *Runner) Failures() []string { return r.failures }

func (r *Runner) RunFile(path string) error {
	return r.finish(r.state.DoFile(path))
}

func (r *Runner) RunString(src string) error {
	return r.finish(r.state.DoString(src))
}

func (r *Runner) finish(err error) error {
	if err != nil {
		return fmt.Errorf("script: %w", err)
	}
	if len(r.failures) > 0 {
		return fmt.Errorf("%w: %d failed: %s", ErrExpectation, len(r.failures), strings.Join(r.failures, "; "))
	}
	return nil
}

func (r *Runner) register() {
	fns := map[string]lua.LGFunction{
		"read8":    r.read(1),
		"read16":   r.read(2),
		"read32":   r.read(4),
		"write8":   r.write(1),
		"write16":  r.write(2),
		"write32":  r.write(4),
		"advance":  r.advance,
		"now":      r.now,
		"irq":      r.pin(intc.DomainIRQ),
		"fiq":      r.pin(intc.DomainFIQ),
		"ack":      r.ack,
		"eoi":      r.eoi,
		"raise":    r.input(true),
		"lower":    r.input(false),
		"line":     r.line,
		"priority": r.priority,
		"send":     r.send,
		"received": r.received,
		"resets":   r.resets,
		"reset":    r.reset,
		"expect":   r.expect,
		"print":    r.print,
	}
	for name, fn := range fns {
		r.state.SetGlobal(name, r.state.NewFunction(fn))
	}
	r.state.SetGlobal("BOARD", lua.LString(r.board.Name()))
}

func checkAddr(L *lua.LState, n int) uint64 {
	return uint64(L.CheckInt64(n)) & 0xFFFFFFFF
}

func checkDomain(L *lua.LState, n int) intc.Domain {
	switch strings.ToLower(L.OptString(n, "irq")) {
	case "irq":
		return intc.DomainIRQ
	case "fiq":
		return intc.DomainFIQ
	}
	L.ArgError(n, "domain must be \"irq\" or \"fiq\"")
	return 0
}

func (r *Runner) read(size uint8) lua.LGFunction {
	return func(L *lua.LState) int {
		v, err := r.board.Read(checkAddr(L, 1), size)
		if err != nil {
			L.RaiseError("%v", err)
		}
		L.Push(lua.LNumber(v))
		return 1
	}
}

func (r *Runner) write(size uint8) lua.LGFunction {
	return func(L *lua.LState) int {
		if err := r.board.Write(checkAddr(L, 1), size, uint64(L.CheckInt64(2))); err != nil {
			L.RaiseError("%v", err)
		}
		return 0
	}
}

// advance(ns) moves virtual time and returns the number of callbacks fired.
func (r *Runner) advance(L *lua.LState) int {
	d := time.Duration(L.CheckInt64(1))
	if d < 0 {
		L.ArgError(1, "negative duration")
	}
	L.Push(lua.LNumber(r.board.Advance(d)))
	return 1
}

func (r *Runner) now(L *lua.LState) int {
	L.Push(lua.LNumber(r.board.Now()))
	return 1
}

func (r *Runner) pin(d intc.Domain) lua.LGFunction {
	return func(L *lua.LState) int {
		L.Push(lua.LBool(r.board.CPU().Level(d)))
		return 1
	}
}

// ack([domain]) returns vector, ok.
func (r *Runner) ack(L *lua.LState) int {
	v, ok := r.board.Acknowledge(checkDomain(L, 1))
	L.Push(lua.LNumber(v))
	L.Push(lua.LBool(ok))
	return 2
}

func (r *Runner) eoi(L *lua.LState) int {
	r.board.EndOfInterrupt(checkDomain(L, 1))
	return 0
}

func (r *Runner) input(level bool) lua.LGFunction {
	return func(L *lua.LState) int {
		if err := r.board.SetInput(L.CheckInt(1), level); err != nil {
			L.RaiseError("%v", err)
		}
		return 0
	}
}

// line(id) returns a table with the controller state of line id.
func (r *Runner) line(L *lua.LState) int {
	id := L.CheckInt(1)
	var (
		l  intc.Line
		ok bool
	)
	r.board.Inspect(func(c *intc.Controller) {
		if id >= 0 && id < c.NumLines() {
			l, ok = c.Line(id), true
		}
	})
	if !ok {
		L.ArgError(1, "no such line")
	}
	t := L.NewTable()
	t.RawSetString("enabled", lua.LBool(l.Enabled))
	t.RawSetString("pending", lua.LBool(l.Pending))
	t.RawSetString("active", lua.LBool(l.Active))
	t.RawSetString("priority", lua.LNumber(l.Priority))
	t.RawSetString("vector", lua.LNumber(l.Vector))
	L.Push(t)
	return 1
}

// priority([domain]) returns the current priority and the nesting depth.
func (r *Runner) priority(L *lua.LState) int {
	d := checkDomain(L, 1)
	var cur uint8
	var depth int
	r.board.Inspect(func(c *intc.Controller) {
		if int(d) < c.NumDomains() {
			cur, depth = c.CurrentPriority(d), c.Depth(d)
		}
	})
	L.Push(lua.LNumber(cur))
	L.Push(lua.LNumber(depth))
	return 2
}

func (r *Runner) port(L *lua.LState) int {
	n := L.CheckInt(1)
	if n < 0 || n >= len(r.serial) {
		L.ArgError(1, "no such serial port")
	}
	return n
}

// send(port, s) offers s to the guest receiver and returns how many bytes
// were accepted.
func (r *Runner) send(L *lua.LState) int {
	n := r.port(L)
	p, err := r.board.Serial(n)
	if err != nil {
		L.RaiseError("%v", err)
	}
	L.Push(lua.LNumber(devices.Feed(p, []byte(L.CheckString(2)))))
	return 1
}

// received(port) returns and drains what the guest transmitted.
func (r *Runner) received(L *lua.LState) int {
	buf := r.serial[r.port(L)]
	L.Push(lua.LString(buf.String()))
	buf.Reset()
	return 1
}

func (r *Runner) resets(L *lua.LState) int {
	L.Push(lua.LNumber(r.board.CPU().Resets()))
	return 1
}

func (r *Runner) reset(L *lua.LState) int {
	r.board.Reset()
	return 0
}

// expect(cond, msg) records a failure without stopping the script.
func (r *Runner) expect(L *lua.LState) int {
	if lua.LVAsBool(L.Get(1)) {
		return 0
	}
	msg := L.OptString(2, "expectation failed")
	if dbg, ok := L.GetStack(1); ok {
		L.GetInfo("Sl", dbg, lua.LNil)
		msg = fmt.Sprintf("%s:%d: %s", dbg.Source, dbg.CurrentLine, msg)
	}
	r.failures = append(r.failures, msg)
	r.logger.Printf("script: FAIL %s", msg)
	return 0
}

func (r *Runner) print(L *lua.LState) int {
	parts := make([]string, L.GetTop())
	for i := range parts {
		parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
	}
	fmt.Fprintf(r.out, "[%v] %s\n", r.board.Now(), strings.Join(parts, "\t"))
	return 0
}
