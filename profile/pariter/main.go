// Profiling:
// go build ./profile/pariter
// go tool pprof -http=":8000" -nodefraction=0.001 ./pariter cpu.pprof

package main

import (
	"fmt"
	"runtime"

	"github.com/edwinsyarief/heiretsu"
	"github.com/pkg/profile"
	"go.uber.org/zap"
)

type position struct {
	X, Y float64
}

type velocity struct {
	DX, DY float64
}

func main() {
	p := profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	defer p.Stop()

	entities := 200000
	iters := 1000
	run(entities, iters)
}

func run(entities, iters int) {
	logger := zap.Must(zap.NewDevelopment())
	defer func() { _ = logger.Sync() }()

	w := heiretsu.NewWorld(entities)
	pool := heiretsu.NewTaskPool(runtime.GOMAXPROCS(0), heiretsu.WithPoolLogger(logger))
	heiretsu.SetResource(&w, pool)

	builder := heiretsu.NewBuilder2[position, velocity](&w)
	builder.NewEntitiesWithValueSet(entities, position{}, velocity{DX: 1, DY: 2})

	f := heiretsu.NewFilter2[position, velocity](&w, heiretsu.Read[velocity](&w))
	pf := f.Par(pool)
	for i := 0; i < iters; i++ {
		w.AdvanceTick()
		err := heiretsu.ParForEach2(pf, func(_ heiretsu.Entity, pos *position, vel *velocity) {
			pos.X += vel.DX
			pos.Y += vel.DY
		})
		if err != nil {
			logger.Fatal("dispatch failed", zap.Error(err))
		}
	}

	total, err := heiretsu.Fold(heiretsu.NewFilter[position](&w, heiretsu.Read[position](&w)),
		func() float64 { return 0 },
		func(acc float64, _ heiretsu.Entity, pos *position) float64 { return acc + pos.X })
	if err != nil {
		logger.Fatal("fold failed", zap.Error(err))
	}
	fmt.Printf("checksum: %.0f\n", total)
}
