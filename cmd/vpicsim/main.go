// vpicsim drives the interrupt controller boards from Lua scripts, built-in
// scenarios or the host terminal.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"example.com/mcu-vpic/core_engine"
	"example.com/mcu-vpic/core_engine/console"
	"example.com/mcu-vpic/core_engine/script"
)

type globals struct {
	Debug  bool
	logger *log.Logger
}

func (g *globals) board(name string) (*core_engine.Board, error) {
	return core_engine.NewBoard(name, core_engine.Options{
		Logger: g.logger,
		Output: os.Stdout,
		Debug:  g.Debug,
	})
}

func main() {
	var cli struct {
		Debug    bool        `help:"trace bus and controller activity"`
		Run      runCmd      `cmd:"" help:"run a Lua guest script against a board"`
		Scenario scenarioCmd `cmd:"" help:"run the built-in controller scenarios"`
		Console  consoleCmd  `cmd:"" help:"attach the terminal to a board serial port"`
		Regs     regsCmd     `cmd:"" help:"print the memory map and controller state"`
	}

	ctx := kong.Parse(&cli)
	err := ctx.Run(&globals{
		Debug:  cli.Debug,
		logger: log.New(os.Stderr, "", log.Ltime|log.Lmicroseconds),
	})
	ctx.FatalIfErrorf(err)
}

type runCmd struct {
	Board  string `name:"board" default:"tms570" help:"tms570, mpc5675 or ppc755"`
	Script string `arg:"" type:"existingfile" help:"Lua script playing the guest"`
}

func (r *runCmd) Run(g *globals) error {
	b, err := g.board(r.Board)
	if err != nil {
		return err
	}
	runner := script.NewRunner(b, os.Stdout, g.logger)
	defer runner.Close()
	return runner.RunFile(r.Script)
}

type scenarioCmd struct {
	Names []string `arg:"" optional:"" help:"scenarios to run (A, B, C); all when empty"`
}

func (s *scenarioCmd) Run(g *globals) error {
	names := s.Names
	if len(names) == 0 {
		names = scenarioNames()
	}
	for _, name := range names {
		if err := runScenario(name, os.Stdout); err != nil {
			return err
		}
	}
	return nil
}

type consoleCmd struct {
	Board  string        `name:"board" default:"tms570" help:"tms570, mpc5675 or ppc755"`
	Port   int           `name:"port" default:"0" help:"serial port to attach"`
	Script string        `name:"script" type:"existingfile" help:"Lua script run before attaching"`
	Step   time.Duration `name:"step" default:"1ms" help:"virtual time advanced per host tick"`
}

func (c *consoleCmd) Run(g *globals) error {
	b, err := g.board(c.Board)
	if err != nil {
		return err
	}
	if c.Script != "" {
		runner := script.NewRunner(b, os.Stdout, g.logger)
		err := runner.RunFile(c.Script)
		runner.Close()
		if err != nil {
			return err
		}
	}
	port, err := b.Serial(c.Port)
	if err != nil {
		return err
	}
	port.SetOutput(console.CRLFWriter{W: os.Stdout})

	host := console.New(port)
	if err := host.Start(int(os.Stdin.Fd())); err != nil {
		return err
	}
	defer host.Stop()
	fmt.Fprintf(os.Stdout, "vpicsim: %s serial %d attached, Ctrl-A x to detach\r\n", b.Name(), c.Port)

	ticker := time.NewTicker(c.Step)
	defer ticker.Stop()
	for {
		select {
		case <-host.Detached():
			fmt.Fprint(os.Stdout, "\r\n")
			return nil
		case <-ticker.C:
			host.Pump()
			b.Advance(c.Step)
		}
	}
}

type regsCmd struct {
	Board  string `name:"board" default:"tms570" help:"tms570, mpc5675 or ppc755"`
	Script string `name:"script" type:"existingfile" help:"Lua script run before the dump"`
}

func (r *regsCmd) Run(g *globals) error {
	b, err := g.board(r.Board)
	if err != nil {
		return err
	}
	if r.Script != "" {
		runner := script.NewRunner(b, os.Stdout, g.logger)
		err := runner.RunFile(r.Script)
		runner.Close()
		if err != nil {
			return err
		}
	}
	for _, m := range b.Memory() {
		fmt.Println(m)
	}
	snap, err := b.Snapshot()
	if err != nil {
		return err
	}
	fmt.Println(string(snap))
	return nil
}
