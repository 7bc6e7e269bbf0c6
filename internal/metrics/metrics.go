package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"question-bot-backend/internal/queue"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles Prometheus collectors shared across the event handlers.
type Metrics struct {
	registry *prometheus.Registry

	EventsTotal     *prometheus.CounterVec
	EventDuration   *prometheus.HistogramVec
	QuestionsTotal  prometheus.Counter
	AnswersTotal    prometheus.Counter
	DroppedReplies  prometheus.Counter
	ActiveUserLanes prometheus.GaugeFunc
}

func New(q *queue.KeyedQueue) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "question_bot_events_total",
				Help: "Total count of gateway events handled.",
			},
			[]string{"kind", "outcome"},
		),
		EventDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "question_bot_event_duration_seconds",
				Help:    "Histogram of per-event handling durations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		QuestionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "question_bot_questions_submitted_total",
			Help: "Questions forwarded to a destination chat.",
		}),
		AnswersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "question_bot_answers_relayed_total",
			Help: "Staff replies relayed back to submitters.",
		}),
		DroppedReplies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "question_bot_unmatched_replies_total",
			Help: "Replies that matched no forwarded question.",
		}),
	}
	reg.MustRegister(m.EventsTotal, m.EventDuration, m.QuestionsTotal, m.AnswersTotal, m.DroppedReplies)

	if q != nil {
		m.ActiveUserLanes = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "question_bot_active_user_lanes",
				Help: "Users whose events are currently being drained.",
			},
			func() float64 {
				return float64(q.ActiveKeys())
			},
		)
		reg.MustRegister(m.ActiveUserLanes)
	}

	return m
}

// ObserveEvent records one handled event.
func (m *Metrics) ObserveEvent(kind string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.EventsTotal.WithLabelValues(kind, outcome).Inc()
	m.EventDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listener started", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics listener failed", "error", err)
	}
}
