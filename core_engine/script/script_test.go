package script_test

import (
	"bytes"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matryer/is"

	"example.com/mcu-vpic/core_engine"
	"example.com/mcu-vpic/core_engine/script"
)

func newRunner(t *testing.T, board string) (*script.Runner, *bytes.Buffer) {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	b, err := core_engine.NewBoard(board, core_engine.Options{Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	r := script.NewRunner(b, &out, logger)
	t.Cleanup(r.Close)
	return r, &out
}

func TestScriptDrivesVIM(t *testing.T) {
	is := is.New(t)
	r, _ := newRunner(t, core_engine.BoardTMS570)

	err := r.RunString(`
		expect(BOARD == "tms570", "board name")
		write32(0xFFFFFE30, 0x20)   -- enable channel 5
		raise(5)
		expect(irq(), "irq after raise")
		expect(line(5).enabled and line(5).pending, "line state")
		local v, ok = ack()
		expect(ok and v == 6, "vector " .. v)
		lower(5)
		expect(not irq(), "irq after lower")
		raise(0)
		expect(fiq(), "fixed channel 0 goes to fiq")
	`)
	is.NoErr(err)
	is.Equal(len(r.Failures()), 0)
}

func TestScriptExpectationFailure(t *testing.T) {
	is := is.New(t)
	r, _ := newRunner(t, core_engine.BoardTMS570)

	err := r.RunString("expect(1 == 1)\nexpect(false, 'boom')\nexpect(irq(), 'idle')")
	is.True(errors.Is(err, script.ErrExpectation))
	is.Equal(len(r.Failures()), 2)
	is.True(strings.Contains(r.Failures()[0], ":2: boom"))
}

func TestScriptLuaError(t *testing.T) {
	is := is.New(t)
	r, _ := newRunner(t, core_engine.BoardTMS570)

	err := r.RunString("read32(0x1000)")
	is.True(err != nil)
	is.True(!errors.Is(err, script.ErrExpectation))

	is.True(r.RunString("ack('nmi')") != nil)
}

func TestScriptSerialAndTime(t *testing.T) {
	is := is.New(t)
	r, out := newRunner(t, core_engine.BoardPPC755)

	err := r.RunString(`
		write8(0xA0004500, 0x41)
		expect(received(0) == "A", "transmitted byte")
		expect(received(0) == "", "drained")
		expect(send(0, "xyz") == 1, "one byte without fifo")
		expect(read8(0xA0004500) == 0x78, "received byte")
		advance(1500)
		expect(now() == 1500, "virtual time")
		print("done", 42)
	`)
	is.NoErr(err)
	is.True(strings.HasPrefix(out.String(), "A"))
	is.True(strings.Contains(out.String(), "done\t42"))
}

func TestScriptPriorityAndReset(t *testing.T) {
	is := is.New(t)
	r, _ := newRunner(t, core_engine.BoardMPC5675)

	err := r.RunString(`
		write8(0xFFF48000 + 0x40 + 100, 6)  -- PSR100
		write32(0xFFF48008, 0)              -- CPR
		raise(100)
		local v, ok = ack()
		expect(ok and v == 100, "vector")
		local cur, depth = priority()
		expect(cur == 6 and depth == 1, "nested once at 6")
		lower(100)
		eoi()
		cur, depth = priority()
		expect(cur == 0 and depth == 0, "restored")
		reset()
		expect(resets() == 1, "reset counted")
	`)
	is.NoErr(err)
}

func TestScriptRunFile(t *testing.T) {
	is := is.New(t)
	r, _ := newRunner(t, core_engine.BoardTMS570)
	path := filepath.Join(t.TempDir(), "idle.lua")
	is.NoErr(os.WriteFile(path, []byte("expect(not irq())\n"), 0o644))
	is.NoErr(r.RunFile(path))
	is.True(r.RunFile(filepath.Join(t.TempDir(), "missing.lua")) != nil)
}
