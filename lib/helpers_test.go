package lib

import (
	"context"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/de"
	"github.com/sarchlab/tempora/sim/manager"
	"github.com/sarchlab/tempora/sim/timing"
	"github.com/sarchlab/tempora/sim/token"
)

type testModel struct {
	top *actor.Composite
	mgr *manager.Manager
}

func newTestModel(stop float64) *testModel {
	logger, _ := logtest.NewNullLogger()

	b := de.MakeBuilder().WithLogger(logger)
	if stop > 0 {
		b = b.WithStopTime(timing.FromSeconds(stop))
	}

	top := actor.MakeCompositeBuilder().WithDirector(b.Build("DE")).Build("Top")
	m := actor.MakeModelBuilder().
		WithResolution(timing.MustResolution(1e-9)).
		Build(top)

	return &testModel{
		top: top,
		mgr: manager.MakeBuilder().WithLogger(logger).Build(m),
	}
}

func (m *testModel) run() error {
	return m.mgr.Run(context.Background())
}

func ramp(name string, init, limit int64) *Ramp {
	return MakeRampBuilder().
		WithInit(token.NewInt(init)).
		WithLimit(int(limit)).
		Build(name)
}

func values(r *Recorder) []float64 {
	var out []float64

	for _, t := range r.Tokens() {
		v, err := t.Double()
		if err != nil {
			panic(err)
		}

		out = append(out, v)
	}

	return out
}

func times(r *Recorder) []float64 {
	var out []float64
	for _, e := range r.Entries() {
		out = append(out, e.Tag.Time.Seconds())
	}

	return out
}
