package steering

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/wellsteer/wellsteer/internal/config"
	"github.com/wellsteer/wellsteer/internal/curve"
	"github.com/wellsteer/wellsteer/internal/metrics"
	"github.com/wellsteer/wellsteer/internal/override"
	"github.com/wellsteer/wellsteer/internal/rotation"
	"github.com/wellsteer/wellsteer/internal/survey"
	"github.com/wellsteer/wellsteer/internal/wits"
)

// Snapshot is the full set of derived steering values at one instant.
// It is recomputed as a whole on every upstream change and replaced, never
// mutated in place.
type Snapshot struct {
	MotorYield   float64   `json:"motor_yield"`
	DoglegNeeded float64   `json:"dogleg_needed"`
	SlideSeen    float64   `json:"slide_seen"`
	SlideAhead   float64   `json:"slide_ahead"`
	ProjectedInc float64   `json:"projected_inc"`
	ProjectedAz  float64   `json:"projected_az"`
	BuildRate    float64   `json:"build_rate"`
	TurnRate     float64   `json:"turn_rate"`
	IsRotating   bool      `json:"is_rotating"`
	AboveBelow   float64   `json:"above_below"`
	LeftRight    float64   `json:"left_right"`
	ComputedAt   time.Time `json:"computed_at"`
}

// Coordinator owns the shared steering state: the latest telemetry sample,
// the debounced rotation flag, the survey aggregate, the target line and the
// manual overrides. Any change to one of them recomputes the snapshot.
// Recomputation is idempotent; the same inputs always produce the same
// values.
type Coordinator struct {
	link *wits.Link
	agg  *survey.Aggregator
	ovr  *override.Store
	deb  *rotation.Debouncer
	eng  *curve.Engine

	mu       sync.RWMutex
	drilling config.DrillingConfig
	roles    config.ChannelsConfig
	target   config.TargetConfig
	latest   wits.Sample
	snap     Snapshot

	subMu   sync.Mutex
	subs    map[chan Snapshot]struct{}
	onState func(wits.State)
}

// New wires a Coordinator from the already-constructed collaborators and the
// loaded configuration.
func New(link *wits.Link, agg *survey.Aggregator, ovr *override.Store, cfg *config.Config) *Coordinator {
	c := &Coordinator{
		link:     link,
		agg:      agg,
		ovr:      ovr,
		drilling: cfg.Drilling,
		roles:    cfg.Channels,
		target:   cfg.Drilling.Target,
		subs:     make(map[chan Snapshot]struct{}),
	}
	c.eng = curve.New(curve.Fallbacks{
		MotorYield: cfg.Drilling.Fallbacks.MotorYield,
		Dogleg:     cfg.Drilling.Fallbacks.Dogleg,
		BuildRate:  cfg.Drilling.Fallbacks.BuildRate,
		TurnRate:   cfg.Drilling.Fallbacks.TurnRate,
	}, cfg.Drilling.MinDistance)
	c.deb = rotation.New(cfg.Drilling.RotationThreshold, cfg.Drilling.RotationDebounce.Std(), func(rotating bool) {
		slog.Info("steering: rotation state settled", "rotating", rotating)
		c.Recompute()
	})

	agg.OnChange(c.Recompute)
	ovr.OnChange(c.Recompute)
	return c
}

// OnState registers fn to run on every connection state change the
// coordinator observes. Must be called before Start.
func (c *Coordinator) OnState(fn func(wits.State)) {
	c.onState = fn
}

// Start consumes the link's sample, state and error channels until ctx is
// cancelled.
func (c *Coordinator) Start(ctx context.Context) {
	go func() {
		defer c.deb.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-c.link.Samples():
				c.handleSample(s)
			case st := <-c.link.States():
				slog.Info("steering: connection state", "state", st.String())
				if c.onState != nil {
					c.onState(st)
				}
			case err := <-c.link.Errors():
				slog.Warn("steering: link error", "error", err)
			}
		}
	}()
}

func (c *Coordinator) handleSample(s wits.Sample) {
	c.mu.Lock()
	c.latest = s
	roles := c.roles
	c.mu.Unlock()

	if roles.RotarySpeed > 0 {
		if speed, ok := s.Num(roles.RotarySpeed); ok {
			c.deb.Observe(speed)
		}
	}
	c.Recompute()
}

// Recompute rebuilds the snapshot from current inputs and publishes it to
// all subscribers.
func (c *Coordinator) Recompute() {
	c.mu.Lock()
	snap := c.computeLocked()
	c.snap = snap
	c.mu.Unlock()

	metrics.SnapshotRecomputes.Inc()
	c.publish(snap)
}

func (c *Coordinator) computeLocked() Snapshot {
	d := c.drilling
	fb := c.eng.Fallbacks()

	buildRate, turnRate := c.agg.Rates()
	rotating := c.deb.IsRotating()
	last, haveSurvey := c.agg.Latest()
	recent := c.agg.Recent()

	tvd, haveTVD := c.channelNumLocked(c.roles.TVD)
	vs, haveVS := c.channelNumLocked(c.roles.VerticalSection)
	slide := c.slideLocked(last, haveSurvey)

	var motorYield float64
	if len(recent) >= 2 {
		prev := recent[1]
		motorYield = c.eng.MotorYield(last.Inclination, prev.Inclination,
			last.MeasuredDepth-prev.MeasuredDepth, slide, d.BendAngle, d.BitToBend)
	} else {
		motorYield = c.eng.MotorYield(math.NaN(), math.NaN(), math.NaN(),
			slide, d.BendAngle, d.BitToBend)
	}

	snap := Snapshot{
		MotorYield:   motorYield,
		DoglegNeeded: fb.Dogleg,
		SlideSeen:    curve.SlideSeen(motorYield, slide, rotating),
		SlideAhead:   curve.SlideAhead(motorYield, slide, d.BitToBend, rotating),
		BuildRate:    buildRate,
		TurnRate:     turnRate,
		IsRotating:   rotating,
		ComputedAt:   time.Now(),
	}

	if haveSurvey {
		snap.DoglegNeeded = curve.DoglegNeeded(last.Inclination, last.Azimuth,
			c.target.Inclination, c.target.Azimuth, d.ProjectionDistance)
		snap.ProjectedInc = curve.ProjectInclination(last.Inclination, buildRate, d.ProjectionDistance)
		snap.ProjectedAz = curve.ProjectAzimuth(last.Azimuth, turnRate, d.ProjectionDistance)
		if haveVS {
			snap.LeftRight = curve.LeftRight(vs, last.Azimuth, c.target.VS, c.target.Azimuth)
		}
	}
	if haveTVD {
		snap.AboveBelow = curve.AboveBelow(tvd, c.target.TVD)
	}

	c.applyOverrides(&snap)
	return snap
}

// slideLocked derives the current slide distance: bit depth ahead of the
// latest survey station, floored at zero.
func (c *Coordinator) slideLocked(last survey.Record, haveSurvey bool) float64 {
	if !haveSurvey {
		return 0
	}
	bitDepth, ok := c.channelNumLocked(c.roles.BitDepth)
	if !ok {
		return 0
	}
	slide := bitDepth - last.MeasuredDepth
	if slide < 0 {
		return 0
	}
	return slide
}

func (c *Coordinator) channelNumLocked(ch int) (float64, bool) {
	if ch <= 0 {
		return 0, false
	}
	return c.latest.Num(ch)
}

func (c *Coordinator) applyOverrides(snap *Snapshot) {
	for field, raw := range c.ovr.Values() {
		if field == override.FieldIsRotating {
			if b, ok := raw.(bool); ok {
				snap.IsRotating = b
			}
			continue
		}
		v, ok := raw.(float64)
		if !ok {
			continue
		}
		switch field {
		case override.FieldMotorYield:
			snap.MotorYield = v
		case override.FieldDoglegNeeded:
			snap.DoglegNeeded = v
		case override.FieldSlideSeen:
			snap.SlideSeen = v
		case override.FieldSlideAhead:
			snap.SlideAhead = v
		case override.FieldProjectedInc:
			snap.ProjectedInc = v
		case override.FieldProjectedAz:
			snap.ProjectedAz = v
		case override.FieldBuildRate:
			snap.BuildRate = v
		case override.FieldTurnRate:
			snap.TurnRate = v
		case override.FieldAboveBelow:
			snap.AboveBelow = v
		case override.FieldLeftRight:
			snap.LeftRight = v
		}
	}
}

// Snapshot returns the most recently computed snapshot.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// LatestSample returns the most recent telemetry sample.
func (c *Coordinator) LatestSample() wits.Sample {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

// Target returns the current target line.
func (c *Coordinator) Target() config.TargetConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.target
}

// SetTarget replaces the target line and recomputes.
func (c *Coordinator) SetTarget(t config.TargetConfig) {
	c.mu.Lock()
	c.target = t
	c.mu.Unlock()
	c.Recompute()
}

// Nudge predicts the orientation after sliding the current slide distance
// with the toolface held at toolFace degrees. With no survey on file the
// projection starts from a vertical hole.
func (c *Coordinator) Nudge(toolFace float64, gravityToolface bool) curve.Projection {
	c.mu.RLock()
	last, haveSurvey := c.agg.Latest()
	slide := c.slideLocked(last, haveSurvey)
	motorYield := c.snap.MotorYield
	c.mu.RUnlock()

	return curve.NudgeProjection(last.Inclination, last.Azimuth, toolFace, motorYield, slide, gravityToolface)
}

// ApplyConfig picks up reloaded drilling and channel settings.
// Connection settings are the link's business and apply on its next connect.
func (c *Coordinator) ApplyConfig(cfg *config.Config) {
	c.mu.Lock()
	c.drilling = cfg.Drilling
	c.roles = cfg.Channels
	c.target = cfg.Drilling.Target
	c.eng = curve.New(curve.Fallbacks{
		MotorYield: cfg.Drilling.Fallbacks.MotorYield,
		Dogleg:     cfg.Drilling.Fallbacks.Dogleg,
		BuildRate:  cfg.Drilling.Fallbacks.BuildRate,
		TurnRate:   cfg.Drilling.Fallbacks.TurnRate,
	}, cfg.Drilling.MinDistance)
	c.mu.Unlock()
	c.Recompute()
}

// Subscribe returns a channel receiving every published snapshot and a
// cancel function. Slow subscribers drop snapshots rather than block the
// coordinator.
func (c *Coordinator) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)
	c.subMu.Lock()
	c.subs[ch] = struct{}{}
	c.subMu.Unlock()

	cancel := func() {
		c.subMu.Lock()
		delete(c.subs, ch)
		c.subMu.Unlock()
	}
	return ch, cancel
}

func (c *Coordinator) publish(snap Snapshot) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}
