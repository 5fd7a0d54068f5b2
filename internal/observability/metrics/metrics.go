package metrics

import "github.com/prometheus/client_golang/prometheus"

// BotMetrics exposes counters/histograms for the reply pipeline.
type BotMetrics struct {
	inboundTotal  *prometheus.CounterVec
	repliesTotal  *prometheus.CounterVec
	modelAttempts *prometheus.CounterVec
	outboundTotal *prometheus.CounterVec
	replyLatency  *prometheus.HistogramVec
	faqBestScore  prometheus.Histogram
}

func NewBotMetrics(reg prometheus.Registerer) *BotMetrics {
	m := &BotMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faqbot",
			Subsystem: "whatsapp",
			Name:      "inbound_messages_total",
			Help:      "Inbound WhatsApp messages by type and outcome",
		}, []string{"type", "outcome"}),
		repliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faqbot",
			Subsystem: "reply",
			Name:      "generated_total",
			Help:      "Replies produced by the reply generator, by source",
		}, []string{"source"}),
		modelAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faqbot",
			Subsystem: "reply",
			Name:      "model_attempts_total",
			Help:      "Generative model attempts by outcome",
		}, []string{"outcome"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faqbot",
			Subsystem: "whatsapp",
			Name:      "outbound_total",
			Help:      "Outbound WhatsApp sends by status",
		}, []string{"status"}),
		replyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "faqbot",
			Subsystem: "reply",
			Name:      "latency_seconds",
			Help:      "Latency of reply generation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		faqBestScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "faqbot",
			Subsystem: "faq",
			Name:      "best_score",
			Help:      "Best cosine similarity per FAQ lookup",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.repliesTotal, m.modelAttempts, m.outboundTotal, m.replyLatency, m.faqBestScore)
	return m
}

func (m *BotMetrics) ObserveInbound(msgType, outcome string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(msgType, outcome).Inc()
}

func (m *BotMetrics) ObserveReply(source string, seconds float64) {
	if m == nil {
		return
	}
	m.repliesTotal.WithLabelValues(source).Inc()
	m.replyLatency.WithLabelValues(source).Observe(seconds)
}

func (m *BotMetrics) ObserveModelAttempt(outcome string) {
	if m == nil {
		return
	}
	m.modelAttempts.WithLabelValues(outcome).Inc()
}

func (m *BotMetrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}

func (m *BotMetrics) ObserveFAQScore(score float64) {
	if m == nil {
		return
	}
	m.faqBestScore.Observe(score)
}
