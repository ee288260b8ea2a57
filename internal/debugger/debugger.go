/*
Package debugger is an interactive REPL over a running emu/core.Emulator:
step/run/regs/csr/mem/break/load, adapted from the teacher's
command/parser + command/reader pair (a name-prefix command table driving
a liner.Liner prompt) with S/370 channel/CCW commands replaced by RV64
hart inspection commands.

Copyright 2026, rvchain authors
*/
package debugger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/rvchain/engine/emu/core"
	"github.com/rvchain/engine/emu/csr"
	"github.com/rvchain/engine/emu/memory"
	"github.com/rvchain/engine/emu/trap"
	"github.com/rvchain/engine/util/hex"
)

type command struct {
	name    string
	min     int
	usage   string
	process func(args []string, d *Debugger) error
}

var commands = []command{
	{name: "step", min: 1, usage: "step [n]", process: cmdStep},
	{name: "run", min: 1, usage: "run [budget]", process: cmdRun},
	{name: "regs", min: 1, usage: "regs", process: cmdRegs},
	{name: "csr", min: 1, usage: "csr <name>", process: cmdCSR},
	{name: "mem", min: 1, usage: "mem <addr> <len>", process: cmdMem},
	{name: "break", min: 2, usage: "break <addr>", process: cmdBreak},
	{name: "load", min: 1, usage: "load <elf> [input]", process: cmdLoad},
	{name: "quit", min: 1, usage: "quit", process: cmdQuit},
}

// csrNames maps the handful of CSRs a debugger session cares about by
// name to address, since typing "0x344" every time is unpleasant.
var csrNames = map[string]uint16{
	"mstatus": csr.Mstatus, "misa": csr.Misa, "medeleg": csr.Medeleg,
	"mideleg": csr.Mideleg, "mie": csr.Mie, "mtvec": csr.Mtvec,
	"mscratch": csr.Mscratch, "mepc": csr.Mepc, "mcause": csr.Mcause,
	"mtval": csr.Mtval, "mip": csr.Mip,
	"sstatus": csr.Sstatus, "sie": csr.Sie, "stvec": csr.Stvec,
	"sscratch": csr.Sscratch, "sepc": csr.Sepc, "scause": csr.Scause,
	"stval": csr.Stval, "sip": csr.Sip, "satp": csr.Satp,
}

// Debugger owns the emulator under inspection plus the small amount of
// REPL-local state (breakpoints, quit flag) the command table mutates.
type Debugger struct {
	Emu     *core.Emulator
	ELFPath string
	InputPath string

	breakpoints map[uint64]bool
	quit        bool
}

// New builds a debugger session over emu.
func New(emu *core.Emulator) *Debugger {
	return &Debugger{Emu: emu, breakpoints: make(map[uint64]bool)}
}

// Run drives the liner-backed REPL until the user quits or aborts (^D).
func (d *Debugger) Run() {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(prefix string) []string {
		var out []string
		for _, c := range commands {
			if strings.HasPrefix(c.name, prefix) {
				out = append(out, c.name)
			}
		}
		return out
	})

	for !d.quit {
		text, err := line.Prompt("rv> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				return
			}
			slog.Error("debugger: reading line", "err", err)
			return
		}
		line.AppendHistory(text)
		if err := d.dispatch(text); err != nil {
			fmt.Println("error:", err)
		}
	}
}

func (d *Debugger) dispatch(text string) error {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	name, args := fields[0], fields[1:]

	var match *command
	for i := range commands {
		c := &commands[i]
		if len(name) >= c.min && strings.HasPrefix(c.name, name) {
			if match != nil {
				return fmt.Errorf("ambiguous command: %s", name)
			}
			match = c
		}
	}
	if match == nil {
		return fmt.Errorf("unknown command: %s", name)
	}
	return match.process(args, d)
}

func cmdStep(args []string, d *Debugger) error {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		n = v
	}
	for i := 0; i < n; i++ {
		if res := d.Emu.Step(); res != nil {
			printResult(res)
			return nil
		}
		if d.breakpoints[d.Emu.CPU.PC] {
			fmt.Printf("breakpoint hit at 0x%x\n", d.Emu.CPU.PC)
			return nil
		}
	}
	return nil
}

func cmdRun(args []string, d *Debugger) error {
	budget := int64(0)
	if len(args) > 0 {
		v, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return err
		}
		budget = v
	}
	res := d.Emu.Run(context.Background(), budget)
	printResult(res)
	return nil
}

func cmdRegs(args []string, d *Debugger) error {
	c := d.Emu.CPU
	var row [4]uint64
	for i := 0; i < 32; i += 4 {
		row[0], row[1], row[2], row[3] = c.GetX(uint32(i)), c.GetX(uint32(i+1)), c.GetX(uint32(i+2)), c.GetX(uint32(i+3))
		var b strings.Builder
		for j, v := range row {
			fmt.Fprintf(&b, "x%-2d=", i+j)
			hex.FormatReg64(&b, v)
			b.WriteByte(' ')
		}
		fmt.Println(strings.TrimSpace(b.String()))
	}
	var pc strings.Builder
	hex.FormatReg64(&pc, c.PC)
	fmt.Printf("pc=%s priv=%s\n", pc.String(), c.Priv)
	return nil
}

func cmdCSR(args []string, d *Debugger) error {
	if len(args) < 1 {
		return errors.New("usage: csr <name>")
	}
	addr, ok := csrNames[strings.ToLower(args[0])]
	if !ok {
		return fmt.Errorf("unknown csr: %s", args[0])
	}
	fmt.Printf("%s = 0x%016x\n", args[0], d.Emu.CPU.CSR.Get(addr))
	return nil
}

func cmdMem(args []string, d *Debugger) error {
	if len(args) < 2 {
		return errors.New("usage: mem <addr> <len>")
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 64)
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return err
	}
	for off := 0; off < n; off += 8 {
		v, _ := d.Emu.Bus.Load(trap.AccessLoad, addr+uint64(off), memory.Double)
		var bs [8]byte
		for i := range bs {
			b, _ := d.Emu.Bus.Load(trap.AccessLoad, addr+uint64(off)+uint64(i), memory.Byte)
			bs[i] = byte(b)
		}
		var line strings.Builder
		hex.FormatReg64(&line, addr+uint64(off))
		line.WriteString(": ")
		hex.FormatReg64(&line, v)
		line.WriteString("  ")
		hex.FormatBytes(&line, true, bs[:])
		fmt.Println(line.String())
	}
	return nil
}

func cmdBreak(args []string, d *Debugger) error {
	if len(args) < 1 {
		return errors.New("usage: break <addr>")
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 64)
	if err != nil {
		return err
	}
	d.breakpoints[addr] = true
	return nil
}

func cmdLoad(args []string, d *Debugger) error {
	if len(args) < 1 {
		return errors.New("usage: load <elf> [input]")
	}
	d.ELFPath = args[0]
	if len(args) > 1 {
		d.InputPath = args[1]
	}
	return fmt.Errorf("load must be done by the host before starting the debugger session")
}

func cmdQuit(args []string, d *Debugger) error {
	d.quit = true
	return nil
}

func printResult(res *core.RunResult) {
	switch res.Kind {
	case core.Halted:
		fmt.Printf("halted: a0=0x%x a1=0x%x\n", res.A0, res.A1)
	case core.HostCall:
		fmt.Printf("hostcall: selector=%d\n", res.Selector)
	case core.Exception:
		fmt.Printf("exception: cause=%d tval=0x%x\n", res.Cause, res.Tval)
	case core.TimedOut:
		fmt.Println("budget exhausted")
	}
}
