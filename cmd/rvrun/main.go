/*
rvrun - demo/debugger harness for the RV64 guest execution engine.

Loads a guest ELF, answers its host syscalls with an in-memory reference
host, and either runs it to completion or drops into an interactive
debugger. Adapted from the teacher's main.go (getopt flag parsing,
slog setup via a custom handler, SIGINT/SIGTERM shutdown) with the
S/370 config-file/telnet-server wiring replaced by a single guest image
and an optional serial console.

Copyright 2026, rvchain authors
*/
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	getopt "github.com/pborman/getopt/v2"

	"github.com/rvchain/engine/emu/blk"
	"github.com/rvchain/engine/emu/bus"
	"github.com/rvchain/engine/emu/core"
	"github.com/rvchain/engine/emu/hostcall"
	"github.com/rvchain/engine/emu/memory"
	"github.com/rvchain/engine/emu/plic"
	"github.com/rvchain/engine/emu/timer"
	"github.com/rvchain/engine/emu/uart"
	"github.com/rvchain/engine/internal/console"
	"github.com/rvchain/engine/internal/debugger"
	"github.com/rvchain/engine/internal/xlog"
	"github.com/rvchain/engine/util/debug"
)

const (
	dramBase = 0x8000_0000
	uartBase = 0x1000_0000
	clintBase = 0x0200_0000
	plicBase  = 0x0c00_0000
	blkBase   = 0x1000_1000
)

func main() {
	optELF := getopt.StringLong("elf", 'e', "", "Guest ELF image to load")
	optInput := getopt.StringLong("input", 'i', "", "Input file placed in the guest I/O buffer")
	optDisk := getopt.StringLong("disk", 'd', "", "Disk image backing the virtio block device")
	optBudget := getopt.StringLong("budget", 'b', "0", "Maximum instructions to execute (0 = unlimited)")
	optDRAM := getopt.StringLong("dram", 'm', "67108864", "Guest DRAM size in bytes")
	optInteractive := getopt.BoolLong("interactive", 'x', "Drop into the interactive debugger instead of running to completion")
	optConsole := getopt.BoolLong("console", 'c', "Attach the host terminal as the guest serial console")
	optDebug := getopt.BoolLong("debug", 'g', "Verbose instruction/trap tracing")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp || *optELF == "" {
		getopt.Usage()
		if *optELF == "" {
			os.Exit(1)
		}
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *optDebug {
		level = slog.LevelDebug
	}
	logger := slog.New(xlog.New(os.Stderr, level, *optDebug))
	slog.SetDefault(logger)
	debug.Init(logger, debug.Trap|debug.HostIO)

	image, err := os.ReadFile(*optELF)
	if err != nil {
		logger.Error("reading elf", "err", err)
		os.Exit(1)
	}
	var input []byte
	if *optInput != "" {
		input, err = os.ReadFile(*optInput)
		if err != nil {
			logger.Error("reading input", "err", err)
			os.Exit(1)
		}
	}

	dramSize, err := strconv.ParseUint(*optDRAM, 0, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -dram %q: %v\n", *optDRAM, err)
		os.Exit(1)
	}
	budget, err := strconv.ParseInt(*optBudget, 0, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -budget %q: %v\n", *optBudget, err)
		os.Exit(1)
	}

	dram := memory.New(dramBase, dramSize)
	b := bus.New(dram)

	var consoleHost *console.Host
	if *optConsole {
		consoleHost, err = console.Open()
		if err != nil {
			logger.Error("opening console", "err", err)
			os.Exit(1)
		}
		defer consoleHost.Close()
		b.Map(uartBase, uart.Size, uart.New(consoleHost.In(), consoleHost.Out()))
	} else {
		b.Map(uartBase, uart.Size, uart.New(nil, os.Stdout))
	}

	if *optDisk != "" {
		disk, err := os.OpenFile(*optDisk, os.O_RDWR, 0)
		if err != nil {
			logger.Error("opening disk", "err", err)
			os.Exit(1)
		}
		defer disk.Close()
		info, _ := disk.Stat()
		b.Map(blkBase, blk.Size, blk.New(dram, disk, uint64(info.Size())))
	}

	emu, err := core.FromELF(b, image, input)
	if err != nil {
		logger.Error("loading guest image", "err", err)
		os.Exit(1)
	}

	b.Map(clintBase, timer.Size, timer.New(emu.CPU.CSR, 1))
	router := plic.New(emu.CPU.CSR, false)
	for i, dev := range b.Devices() {
		router.Attach(uint32(i+1), dev)
	}
	b.Map(plicBase, plic.Size, router)

	host := hostcall.NewReferenceHost()

	if *optInteractive {
		debugger.New(emu).Run()
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runGuest(ctx, emu, host, budget)
}

// runGuest drives the emulator to completion, answering every host
// syscall the guest raises and resuming until it halts, is timed out by
// the signal context, times out on budget, or faults.
func runGuest(ctx context.Context, emu *core.Emulator, host hostcall.Host, budget int64) {
	for {
		res := emu.Run(ctx, budget)
		switch res.Kind {
		case core.Halted:
			fmt.Printf("halted: a0=0x%x a1=0x%x\n", res.A0, res.A1)
			return
		case core.Exception:
			fmt.Printf("unhandled exception: cause=%d tval=0x%x pc=0x%x\n", res.Cause, res.Tval, emu.CPU.PC)
			return
		case core.TimedOut:
			fmt.Println("execution budget exhausted")
			return
		case core.HostCall:
			if hostcall.Halted(res.Selector) {
				fmt.Printf("halted: a0=0x%x a1=0x%x\n", emu.Reg(10), emu.Reg(11))
				return
			}
			hostcall.Dispatch(host, res.Selector, emu, emu)
			emu.ResumeHostCall()
		}
	}
}
