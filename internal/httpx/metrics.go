package httpx

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_orders_placed_total",
		Help: "Orders successfully placed.",
	})
	ordersRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_orders_rejected_total",
		Help: "Order placements rejected for insufficient stock.",
	})
	ordersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_orders_cancelled_total",
		Help: "Orders cancelled with stock restored.",
	})
	checkouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_checkouts_total",
		Help: "Cart checkouts by result.",
	}, []string{"result"})
)
