// Command sonicgraphdemo wires a Simulation, an Environment, and one
// spatialized buffer playback through the oto audio backend: a minimal,
// runnable consumer of the sonicgraph packages.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/zaynotley/sonicgraph/audiobackend"
	"github.com/zaynotley/sonicgraph/buffer"
	"github.com/zaynotley/sonicgraph/env"
	"github.com/zaynotley/sonicgraph/sim"
)

const (
	sampleRate = 44100
	blockSize  = 512
	channels   = 2
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: sonicgraphdemo <file.wav>")
		os.Exit(1)
	}

	s := sim.New(sampleRate, blockSize, 4)
	environment := env.New(s, sampleRate, blockSize, nil)
	s.SetOutputNode(environment.Node)

	reverbSend, err := environment.AddEffectSend(4, true, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, "add effect send:", err)
		os.Exit(1)
	}
	_ = reverbSend

	f, err := os.Open(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer f.Close()

	var reader buffer.WavReader
	srcRate, srcChannels, frames, data, err := reader.Read(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, "decode wav:", err)
		os.Exit(1)
	}
	buf, err := buffer.LoadFromArray(sampleRate, srcRate, srcChannels, frames, data)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load buffer:", err)
		os.Exit(1)
	}

	environment.PlayAsync(buf, 2, 0, -3, false)

	device, err := audiobackend.NewOtoDevice(sampleRate, channels, s)
	if err != nil {
		fmt.Fprintln(os.Stderr, "audio device:", err)
		os.Exit(1)
	}
	device.Start()
	defer device.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	select {
	case <-ctx.Done():
	case <-time.After(30 * time.Second):
	}
}
