package alerts

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wellsteer/wellsteer/internal/config"
	"github.com/wellsteer/wellsteer/internal/steering"
	"github.com/wellsteer/wellsteer/internal/wits"
)

func TestEvalCondition(t *testing.T) {
	snap := steering.Snapshot{
		MotorYield:   1.2,
		DoglegNeeded: 4.5,
		AboveBelow:   -42,
		LeftRight:    12,
		BuildRate:    2.0,
		IsRotating:   true,
	}

	tests := []struct {
		cond  string
		state wits.State
		fires bool
		value float64
	}{
		{"dogleg_needed > 4", wits.StateReceiving, true, 4.5},
		{"dogleg_needed > 5", wits.StateReceiving, false, 4.5},
		{"motor_yield < 1.5", wits.StateReceiving, true, 1.2},
		{"above_below < -30", wits.StateReceiving, true, -42},
		{"left_right >= 12", wits.StateReceiving, true, 12},
		{"build_rate == 2", wits.StateReceiving, true, 2},
		{"is_rotating == true", wits.StateReceiving, true, 0},
		{"is_rotating == false", wits.StateReceiving, false, 0},
		{"connection_state == disconnected", wits.StateDisconnected, true, 0},
		{"connection_state == disconnected", wits.StateReceiving, false, 0},
		{"connection_state == Reconnecting", wits.StateReconnecting, true, 4},
		{"unknown_field > 1", wits.StateReceiving, false, 0},
		{"dogleg_needed >", wits.StateReceiving, false, 0},
		{"dogleg_needed > abc", wits.StateReceiving, false, 0},
		{"connection_state > disconnected", wits.StateDisconnected, false, 0},
	}
	for _, tt := range tests {
		fires, value := evalCondition(tt.cond, snap, tt.state)
		if fires != tt.fires {
			t.Errorf("%q (state %s): fires = %v, want %v", tt.cond, tt.state, fires, tt.fires)
		}
		if fires && value != tt.value {
			t.Errorf("%q: value = %v, want %v", tt.cond, value, tt.value)
		}
	}
}

func TestEngine_FireAndResolve(t *testing.T) {
	hits := make(chan []byte, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		hits <- body
	}))
	defer srv.Close()
	t.Setenv("TEST_WEBHOOK_URL", srv.URL)

	e := New(config.AlertsConfig{
		Rules: []config.AlertRule{{
			Name:      "excessive dogleg",
			Condition: "dogleg_needed > 4",
			Severity:  "critical",
			Cooldown:  config.Duration(time.Minute),
		}},
		Webhooks: []config.WebhookConfig{{Type: "http", URLEnv: "TEST_WEBHOOK_URL"}},
	})

	e.Evaluate(steering.Snapshot{DoglegNeeded: 5.1}, wits.StateReceiving)

	active := e.Active()
	if len(active) != 1 || active[0].State != "firing" {
		t.Fatalf("after fire: Active() = %+v", active)
	}
	select {
	case <-hits:
	case <-time.After(time.Second):
		t.Fatal("firing alert never reached the webhook")
	}

	// Same rule firing again inside the cooldown must not re-fire.
	e.Evaluate(steering.Snapshot{DoglegNeeded: 5.5}, wits.StateReceiving)
	if got := len(e.Active()); got != 1 {
		t.Errorf("cooldown violated: %d active alerts", got)
	}

	// Condition back under threshold resolves the alert.
	e.Evaluate(steering.Snapshot{DoglegNeeded: 3.0}, wits.StateReceiving)
	active = e.Active()
	if len(active) != 1 || active[0].State != "resolved" {
		t.Fatalf("after resolve: Active() = %+v", active)
	}
	select {
	case <-hits:
	case <-time.After(time.Second):
		t.Fatal("resolution never reached the webhook")
	}
}

func TestEngine_NoRulesIsNoop(t *testing.T) {
	e := New(config.AlertsConfig{})
	e.Evaluate(steering.Snapshot{DoglegNeeded: 99}, wits.StateDisconnected)
	if got := len(e.Active()); got != 0 {
		t.Errorf("Active() returned %d alerts with no rules", got)
	}
}
