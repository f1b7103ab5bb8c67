package sim_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/hurdletime/internal/adapters/transport/sim"
	"github.com/okian/hurdletime/internal/domain/connection"
	"github.com/okian/hurdletime/internal/domain/decoder"
	"github.com/okian/hurdletime/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDiscovery(t *testing.T) {
	Convey("Given a simulated sensor", t, func() {
		tr := sim.New()
		ctx := context.Background()

		Convey("When scanning with a matching prefix", func() {
			dev, err := tr.FindDevice(ctx, decoder.DefaultNamePrefixes)

			Convey("Then the sensor should be found", func() {
				So(err, ShouldBeNil)
				So(dev.Name, ShouldEqual, "ESP32-SIM")
				So(dev.ID, ShouldNotBeEmpty)
			})
		})

		Convey("When scanning with foreign prefixes", func() {
			_, err := tr.FindDevice(ctx, []string{"LANE"})

			Convey("Then it should report not found", func() {
				So(errors.Is(err, connection.ErrDeviceNotFound), ShouldBeTrue)
			})
		})

		Convey("When discovery is slow and the caller gives up", func() {
			slow := sim.New(sim.WithDiscoveryDelay(time.Second))
			cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
			defer cancel()
			_, err := slow.FindDevice(cctx, decoder.DefaultNamePrefixes)

			Convey("Then the context error should surface", func() {
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			})
		})
	})
}

func TestManagerOverSim(t *testing.T) {
	Convey("Given a connection manager driving the simulator", t, func() {
		tr := sim.New(sim.WithSplitInterval(5*time.Millisecond), sim.WithJitter(0))
		var (
			mu     sync.Mutex
			splits []uint32
		)
		m := connection.NewManager(tr, connection.WithSplitHandler(func(ms uint32, _ time.Time) {
			mu.Lock()
			splits = append(splits, ms)
			mu.Unlock()
		}))
		So(m.ScanAndConnect(context.Background(), nil), ShouldBeNil)

		Convey("When the sensor emits frames", func() {
			So(tr.Emit(1000), ShouldBeTrue)
			So(tr.EmitRaw([]byte{9}), ShouldBeTrue)
			So(tr.Emit(2200), ShouldBeTrue)

			Convey("Then valid splits should reach the handler", func() {
				So(splits, ShouldResemble, []uint32{1000, 2200})
			})
		})

		Convey("When a simulated run is started", func() {
			tr.SimulateRun(context.Background(), 3)

			deadline := time.Now().Add(2 * time.Second)
			for time.Now().Before(deadline) {
				mu.Lock()
				n := len(splits)
				mu.Unlock()
				if n == 3 {
					break
				}
				time.Sleep(2 * time.Millisecond)
			}

			Convey("Then three increasing splits should arrive", func() {
				mu.Lock()
				defer mu.Unlock()
				So(splits, ShouldHaveLength, 3)
				So(splits[0], ShouldBeLessThanOrEqualTo, splits[1])
				So(splits[1], ShouldBeLessThanOrEqualTo, splits[2])
			})
		})

		Convey("When the link drops", func() {
			tr.DropLink()

			Convey("Then the next liveness check should mark it Lost", func() {
				So(m.CheckLiveness(), ShouldBeTrue)
				So(m.State(), ShouldEqual, model.Lost)
				So(tr.Emit(1), ShouldBeFalse)
			})
		})
	})
}
