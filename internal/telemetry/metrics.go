// Package telemetry holds the Prometheus collectors exported on /metrics.
package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quiz_sessions_connected",
		Help: "Number of live client connections, admin included.",
	})
	roomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quiz_rooms_active",
		Help: "Number of rooms currently registered.",
	})
	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_messages_total",
		Help: "Inbound messages by type.",
	}, []string{"type"})
	answersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_answers_total",
		Help: "Recorded answers by correctness.",
	}, []string{"correct"})
)

func SessionConnected()    { sessionsConnected.Inc() }
func SessionDisconnected() { sessionsConnected.Dec() }
func RoomOpened()          { roomsActive.Inc() }
func RoomClosed()          { roomsActive.Dec() }

func MessageReceived(kind string) {
	messagesTotal.WithLabelValues(kind).Inc()
}

func AnswerSubmitted(correct bool) {
	answersTotal.WithLabelValues(strconv.FormatBool(correct)).Inc()
}
