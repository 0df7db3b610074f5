package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/tempora/config"
	"github.com/sarchlab/tempora/lib"
	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/de"
	"github.com/sarchlab/tempora/sim/hooking"
	"github.com/sarchlab/tempora/sim/modal"
	"github.com/sarchlab/tempora/sim/process"
	"github.com/sarchlab/tempora/sim/realtime"
	"github.com/sarchlab/tempora/sim/timing"
	"github.com/sarchlab/tempora/sim/token"
)

// A demo is a model the CLI knows how to build.
type demo struct {
	name  string
	short string
	build func(cfg *config.Config, logger logrus.FieldLogger) *demoModel
}

// demoModel is a built demo, ready to be handed to a manager.
type demoModel struct {
	top *actor.Composite

	// domains are the directors tracers and metrics attach to.
	domains []hooking.Hookable

	// outputs name the sinks whose tokens are printed after the run.
	outputs map[string]func() []token.Token
}

var demos = []demo{
	{
		name:  "pipeline",
		short: "ramp, scale and delay under the DE director",
		build: buildPipeline,
	},
	{
		name:  "sampler",
		short: "two ramps merged and periodically sampled",
		build: buildSampler,
	},
	{
		name:  "modal",
		short: "a modal model flipping the sign of a ramp",
		build: buildModal,
	},
	{
		name:  "network",
		short: "timestamped packets with deadlines read from a link",
		build: buildNetwork,
	},
	{
		name:  "process",
		short: "a ramp squared by concurrent processes",
		build: buildProcess,
	},
}

func findDemo(name string) (demo, error) {
	for _, d := range demos {
		if d.name == name {
			return d, nil
		}
	}

	names := make([]string, len(demos))
	for i, d := range demos {
		names[i] = d.name
	}

	sort.Strings(names)

	return demo{}, fmt.Errorf("unknown demo %q, try one of %s",
		name, strings.Join(names, ", "))
}

func deDirector(cfg *config.Config, logger logrus.FieldLogger) *de.Director {
	return de.MakeBuilder().
		WithLogger(logger).
		WithStopTime(cfg.StopTime()).
		WithMaxMicrosteps(cfg.Timing.MaxMicrosteps).
		WithSynchronizeToRealTime(cfg.Realtime.Synchronize).
		Build("DE")
}

func seconds(cfg *config.Config, s float64) timing.Time {
	return cfg.Resolution().FromSeconds(s)
}

func buildPipeline(cfg *config.Config, logger logrus.FieldLogger) *demoModel {
	dir := deDirector(cfg, logger)
	top := actor.MakeCompositeBuilder().WithDirector(dir).Build("Top")

	ramp := lib.MakeRampBuilder().
		WithPeriod(seconds(cfg, 1)).
		WithLimit(10).
		Build("Ramp")
	scale := lib.NewScale("Scale", token.NewDouble(0.5))
	delay := lib.NewTimedDelay("Delay", seconds(cfg, 0.25))
	rec := lib.NewRecorder("Sink", 0)

	top.AddActors(ramp, scale, delay, rec)
	top.MustConnect(ramp.Output, scale.Input)
	top.MustConnect(scale.Output, delay.Input)
	top.MustConnect(delay.Output, rec.Input)

	return &demoModel{
		top:     top,
		domains: []hooking.Hookable{dir},
		outputs: map[string]func() []token.Token{"Sink": rec.Tokens},
	}
}

func buildSampler(cfg *config.Config, logger logrus.FieldLogger) *demoModel {
	dir := deDirector(cfg, logger)
	top := actor.MakeCompositeBuilder().WithDirector(dir).Build("Top")

	slow := lib.MakeRampBuilder().
		WithPeriod(seconds(cfg, 1)).
		WithLimit(5).
		Build("Slow")
	fast := lib.MakeRampBuilder().
		WithInit(token.NewInt(100)).
		WithPeriod(seconds(cfg, 0.3)).
		WithLimit(15).
		Build("Fast")
	merge := lib.NewMerge("Merge")
	sampler := lib.NewPeriodicSampler("Sampler", seconds(cfg, 0.5))
	rec := lib.NewRecorder("Sink", 0)

	top.AddActors(slow, fast, merge, sampler, rec)
	top.MustConnect(slow.Output, merge.Input)
	top.MustConnect(fast.Output, merge.Input)
	top.MustConnect(merge.Output, sampler.Input)
	top.MustConnect(sampler.Output, rec.Input)

	return &demoModel{
		top:     top,
		domains: []hooking.Hookable{dir},
		outputs: map[string]func() []token.Token{"Sink": rec.Tokens},
	}
}

func buildModal(cfg *config.Config, logger logrus.FieldLogger) *demoModel {
	dir := deDirector(cfg, logger)
	top := actor.MakeCompositeBuilder().WithDirector(dir).Build("Top")

	fsm := modal.MakeBuilder().WithLogger(logger).Build("FSM")
	model := actor.MakeCompositeBuilder().WithDirector(fsm).Build("Sign")
	in := model.AddInputPort("input")
	out := model.AddOutputPort("output")

	pass := lib.NewScale("Pass", token.NewInt(1))
	invert := lib.NewScale("Invert", token.NewInt(-1))
	fsm.AddMode("positive", pass)
	fsm.AddMode("negative", invert)

	for _, s := range []*lib.Scale{pass, invert} {
		model.MustConnect(in, s.Input)
		model.MustConnect(s.Output, out)
	}

	above := func(limit int64) modal.Guard {
		return func(ctx modal.GuardContext) bool {
			v, ok := ctx.InputInt("input")
			return ok && v >= limit
		}
	}

	mustAddTransition(fsm, modal.Transition{
		From: "positive", To: "negative", Guard: above(4),
	})
	mustAddTransition(fsm, modal.Transition{
		From: "negative", To: "positive", Guard: above(7),
	})

	ramp := lib.MakeRampBuilder().
		WithPeriod(seconds(cfg, 1)).
		WithLimit(10).
		Build("Ramp")
	rec := lib.NewRecorder("Sink", 0)

	top.AddActors(ramp, model, rec)
	top.MustConnect(ramp.Output, in)
	top.MustConnect(out, rec.Input)

	return &demoModel{
		top:     top,
		domains: []hooking.Hookable{dir, fsm},
		outputs: map[string]func() []token.Token{"Sink": rec.Tokens},
	}
}

func mustAddTransition(d *modal.Director, t modal.Transition) {
	if err := d.AddTransition(t); err != nil {
		panic(err)
	}
}

func buildNetwork(cfg *config.Config, logger logrus.FieldLogger) *demoModel {
	gate := realtime.MakeGateBuilder().
		WithPolicy(cfg.DeadlinePolicy()).
		WithLogger(logger).
		Build()
	dir := de.MakeBuilder().
		WithLogger(logger).
		WithStopTime(cfg.StopTime()).
		WithMaxMicrosteps(cfg.Timing.MaxMicrosteps).
		WithSynchronizeToRealTime(cfg.Realtime.Synchronize).
		WithDeadlineGate(gate).
		Build("DE")
	top := actor.MakeCompositeBuilder().WithDirector(dir).Build("Top")

	const packets = 8

	link := realtime.NewChannelLink(packets)
	for i := 0; i < packets; i++ {
		link.Send(realtime.MakePacket(realtime.Packet{
			Tag: timing.Tag{
				Time: seconds(cfg, 0.05*float64(i+1)),
			},
			Payload:          token.NewInt(int64(i)),
			RelativeDeadline: seconds(cfg, 0.02),
			Depth:            -1,
		}))
	}
	link.Close()

	input := realtime.MakeNetworkInputBuilder().
		WithLogger(logger).
		WithPollInterval(cfg.PollInterval()).
		WithMaxWaitCount(cfg.Realtime.MaxWaitCount).
		Build("Input", link)
	rec := lib.NewRecorder("Sink", 0)

	top.AddActors(input, rec)
	top.MustConnect(input.Output, rec.Input)

	return &demoModel{
		top:     top,
		domains: []hooking.Hookable{dir},
		outputs: map[string]func() []token.Token{"Sink": rec.Tokens},
	}
}

func buildProcess(cfg *config.Config, logger logrus.FieldLogger) *demoModel {
	dir := process.MakeBuilder().WithLogger(logger).Build("Process")
	top := actor.MakeCompositeBuilder().WithDirector(dir).Build("Top")

	ramp := lib.MakeRampBuilder().WithInit(token.NewInt(1)).WithLimit(10).Build("Ramp")
	square := newSquare("Square")
	sink := newCollector("Sink")

	top.AddActors(ramp, square, sink)
	top.MustConnect(ramp.Output, square.input)
	top.MustConnect(square.output, sink.input)

	return &demoModel{
		top:     top,
		domains: []hooking.Hookable{dir},
		outputs: map[string]func() []token.Token{"Sink": sink.Tokens},
	}
}
