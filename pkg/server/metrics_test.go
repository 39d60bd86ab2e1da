package server

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/crystal-mush/arxscript/pkg/events"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read scrape: %v", err)
	}
	return string(body)
}

func expectMetrics(t *testing.T, body string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(body, w) {
			t.Errorf("scrape missing %q", w)
		}
	}
}

func TestMetricsCountEvents(t *testing.T) {
	m := NewMetrics(nil, time.Now())

	m.Receive(events.Event{Type: events.EvDelivered})
	m.Receive(events.Event{Type: events.EvDelivered})
	m.Receive(events.Event{Type: events.EvPassEnd, Result: "accept"})
	m.Receive(events.Event{Type: events.EvWarning, Program: "goblin"})
	m.Receive(events.Event{Type: events.EvTimerFired})
	m.Receive(events.Event{Type: events.EvReload})

	expectMetrics(t, scrape(t, m),
		"arxscript_events_delivered_total 2",
		`arxscript_passes_total{result="accept"} 1`,
		`arxscript_faults_total{kind="warning",program="goblin"} 1`,
		`arxscript_timer_events_total{action="fired"} 1`,
		"arxscript_reloads_total 1",
		"arxscript_goroutines",
	)

	m.Close()
	if !m.Closed() {
		t.Error("Close did not mark the metrics closed")
	}
}

func TestMetricsFromGame(t *testing.T) {
	env := newTestEnv(t, nil)
	m := NewMetrics(env.game, time.Now())
	defer m.Close()

	env.game.Boot()
	env.game.Dispatch("goblin_0001", "hit", "")

	// init reaches both goblins, initend has no handler, then one hit.
	expectMetrics(t, scrape(t, m),
		"arxscript_events_delivered_total 3",
		`arxscript_timer_events_total{action="armed"} 1`,
		"arxscript_instances 2",
		"arxscript_entities 4",
		"arxscript_timers_active 1",
		"arxscript_globals 1",
		`arxscript_queue_depth{queue_type="immediate"} 0`,
	)
}
