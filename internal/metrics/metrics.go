package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OrdersCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shopline",
		Name:      "orders_created_total",
		Help:      "Orders successfully created at checkout.",
	})
	StockConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shopline",
		Name:      "stock_conflicts_total",
		Help:      "Reservations rejected for insufficient stock.",
	})
	VoucherRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shopline",
		Name:      "voucher_rejections_total",
		Help:      "Voucher evaluations that failed, by reason.",
	}, []string{"reason"})
	SagaFastForwards = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shopline",
		Name:      "saga_fast_forwards_total",
		Help:      "Saga reconcile passes that adopted a newer status without a signal.",
	})
	EmailsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shopline",
		Name:      "emails_sent_total",
		Help:      "Notification emails sent, by kind.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(OrdersCreated, StockConflicts, VoucherRejections, SagaFastForwards, EmailsSent)
}

func Handler() http.Handler { return promhttp.Handler() }
