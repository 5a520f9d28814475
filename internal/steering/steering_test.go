package steering

import (
	"math"
	"testing"
	"time"

	"github.com/wellsteer/wellsteer/internal/config"
	"github.com/wellsteer/wellsteer/internal/curve"
	"github.com/wellsteer/wellsteer/internal/override"
	"github.com/wellsteer/wellsteer/internal/survey"
	"github.com/wellsteer/wellsteer/internal/wits"
)

const (
	chRotarySpeed = 13
	chBitDepth    = 8
	chTVD         = 10
	chVS          = 11
)

var baseTime = time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Connection.IPAddress = "127.0.0.1"
	cfg.Connection.Port = 12345
	cfg.Channels.RotarySpeed = chRotarySpeed
	cfg.Channels.BitDepth = chBitDepth
	cfg.Channels.TVD = chTVD
	cfg.Channels.VerticalSection = chVS
	cfg.Drilling.BendAngle = 2.0
	cfg.Drilling.BitToBend = 5.0
	cfg.Drilling.RotationDebounce = config.Duration(20 * time.Millisecond)
	cfg.Drilling.Target = config.TargetConfig{TVD: 9000, VS: 1200, Inclination: 90, Azimuth: 180}
	return cfg
}

func testCoordinator(t *testing.T, cfg *config.Config) (*Coordinator, *survey.Aggregator, *override.Store) {
	t.Helper()
	link := wits.NewLink(cfg.Connection, wits.NewParser(cfg.Connection.WITSLevel, cfg.Channels.Definitions))
	agg := survey.NewAggregator(cfg.Drilling.MinDistance, cfg.Drilling.MovingAverageCount,
		cfg.Drilling.Fallbacks.BuildRate, cfg.Drilling.Fallbacks.TurnRate)
	ovr := override.NewStore(cfg.Limits)
	c := New(link, agg, ovr, cfg)
	t.Cleanup(c.deb.Stop)
	return c, agg, ovr
}

func sample(channels map[int]float64) wits.Sample {
	s := wits.Sample{Timestamp: baseTime, Channels: make(map[int]wits.Value, len(channels))}
	for ch, v := range channels {
		s.Channels[ch] = wits.Value{Num: v, Numeric: true}
	}
	return s
}

// seedSurveys installs two stations a hundred feet apart so build and turn
// rates come from real pairs: 30->32 deg inclination, 180->190 deg azimuth.
func seedSurveys(t *testing.T, agg *survey.Aggregator) {
	t.Helper()
	pairs := []survey.Record{
		{ID: "s1", Timestamp: baseTime.Add(-2 * time.Hour), MeasuredDepth: 9000, Inclination: 30, Azimuth: 180, QC: survey.QCPass},
		{ID: "s2", Timestamp: baseTime.Add(-1 * time.Hour), MeasuredDepth: 9100, Inclination: 32, Azimuth: 190, QC: survey.QCPass},
	}
	for _, r := range pairs {
		if !agg.Add(r) {
			t.Fatalf("seed survey %s rejected", r.ID)
		}
	}
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestCoordinator_EmptyInputsUseFallbacks(t *testing.T) {
	cfg := testConfig()
	c, _, _ := testCoordinator(t, cfg)

	c.Recompute()
	snap := c.Snapshot()

	approx(t, "MotorYield", snap.MotorYield, cfg.Drilling.Fallbacks.MotorYield)
	approx(t, "DoglegNeeded", snap.DoglegNeeded, cfg.Drilling.Fallbacks.Dogleg)
	approx(t, "BuildRate", snap.BuildRate, cfg.Drilling.Fallbacks.BuildRate)
	approx(t, "TurnRate", snap.TurnRate, cfg.Drilling.Fallbacks.TurnRate)
	if snap.IsRotating {
		t.Error("IsRotating true with no rotary readings")
	}
}

func TestCoordinator_SnapshotFromSurveysAndSample(t *testing.T) {
	cfg := testConfig()
	c, agg, _ := testCoordinator(t, cfg)
	seedSurveys(t, agg)

	// Bit 30 ft past the latest station, sliding.
	c.handleSample(sample(map[int]float64{
		chRotarySpeed: 0,
		chBitDepth:    9130,
		chTVD:         8950,
		chVS:          1210,
	}))
	snap := c.Snapshot()

	approx(t, "MotorYield", snap.MotorYield, 2.0)  // |32-30|/100*100
	approx(t, "BuildRate", snap.BuildRate, 2.0)    // 2 deg over 100 ft
	approx(t, "TurnRate", snap.TurnRate, 10.0)     // 10 deg over 100 ft
	approx(t, "SlideSeen", snap.SlideSeen, 0.6)    // 2*30/100
	approx(t, "SlideAhead", snap.SlideAhead, 0.6*(5.0/35.0))
	approx(t, "ProjectedInc", snap.ProjectedInc, 34.0) // 32 + 2*100/100
	approx(t, "ProjectedAz", snap.ProjectedAz, 200.0)  // 190 + 10*100/100
	approx(t, "AboveBelow", snap.AboveBelow, 50.0)     // target 9000 - actual 8950
	approx(t, "LeftRight", snap.LeftRight, 10.0)       // |190-180| < 90, right of line
	approx(t, "DoglegNeeded", snap.DoglegNeeded,
		curve.DoglegNeeded(32, 190, 90, 180, cfg.Drilling.ProjectionDistance))
}

func TestCoordinator_RotationZeroesSlideValues(t *testing.T) {
	cfg := testConfig()
	c, agg, _ := testCoordinator(t, cfg)
	seedSurveys(t, agg)

	c.handleSample(sample(map[int]float64{chRotarySpeed: 60, chBitDepth: 9130}))

	deadline := time.Now().Add(time.Second)
	for !c.Snapshot().IsRotating {
		if time.Now().After(deadline) {
			t.Fatal("debounced rotation never committed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	snap := c.Snapshot()
	approx(t, "SlideSeen", snap.SlideSeen, 0)
	approx(t, "SlideAhead", snap.SlideAhead, 0)
}

func TestCoordinator_OverridesWinAndClearRestores(t *testing.T) {
	cfg := testConfig()
	c, agg, ovr := testCoordinator(t, cfg)
	seedSurveys(t, agg)
	c.handleSample(sample(map[int]float64{chBitDepth: 9130}))

	if _, err := ovr.Set(override.FieldMotorYield, 12.0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	approx(t, "overridden MotorYield", c.Snapshot().MotorYield, 12.0)

	if err := ovr.Clear(override.FieldMotorYield); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	approx(t, "restored MotorYield", c.Snapshot().MotorYield, 2.0)
}

func TestCoordinator_RotatingOverridePinsFlag(t *testing.T) {
	cfg := testConfig()
	c, agg, ovr := testCoordinator(t, cfg)
	seedSurveys(t, agg)

	// Rotary speed zero, so the computed flag is false.
	c.handleSample(sample(map[int]float64{chRotarySpeed: 0, chBitDepth: 9130}))
	if c.Snapshot().IsRotating {
		t.Fatal("IsRotating = true with the rotary stopped")
	}

	ovr.SetRotating(true)
	if !c.Snapshot().IsRotating {
		t.Error("pinned rotation flag not reflected in the snapshot")
	}

	if err := ovr.Clear(override.FieldIsRotating); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if c.Snapshot().IsRotating {
		t.Error("IsRotating stayed pinned after Clear")
	}
}

func TestCoordinator_SetTargetRecomputes(t *testing.T) {
	cfg := testConfig()
	c, agg, _ := testCoordinator(t, cfg)
	seedSurveys(t, agg)
	c.handleSample(sample(map[int]float64{chTVD: 8950}))

	approx(t, "AboveBelow", c.Snapshot().AboveBelow, 50.0)

	target := c.Target()
	target.TVD = 8900
	c.SetTarget(target)
	approx(t, "AboveBelow after retarget", c.Snapshot().AboveBelow, -50.0)
}

func TestCoordinator_SubscribePublishesEachRecompute(t *testing.T) {
	cfg := testConfig()
	c, _, _ := testCoordinator(t, cfg)

	ch, cancel := c.Subscribe()
	c.Recompute()

	select {
	case snap := <-ch:
		if snap.ComputedAt.IsZero() {
			t.Error("published snapshot has zero ComputedAt")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received a snapshot")
	}

	cancel()
	c.Recompute()
	select {
	case <-ch:
		t.Error("cancelled subscriber still received a snapshot")
	default:
	}
}

func TestCoordinator_Nudge(t *testing.T) {
	cfg := testConfig()
	c, agg, _ := testCoordinator(t, cfg)
	seedSurveys(t, agg)
	c.handleSample(sample(map[int]float64{chBitDepth: 9130}))

	got := c.Nudge(0, false)
	want := curve.NudgeProjection(32, 190, 0, 2.0, 30, false)
	approx(t, "Nudge.Inc", got.Inc, want.Inc)
	approx(t, "Nudge.Az", got.Az, want.Az)
}

func TestCoordinator_ApplyConfigSwapsFallbacks(t *testing.T) {
	cfg := testConfig()
	c, _, _ := testCoordinator(t, cfg)

	next := testConfig()
	next.Drilling.Fallbacks.MotorYield = 9.9
	c.ApplyConfig(next)

	approx(t, "MotorYield after reload", c.Snapshot().MotorYield, 9.9)
}
