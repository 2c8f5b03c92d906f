package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RidesBooked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_rides_booked_total",
		Help: "Total rides accepted into the ledger",
	})
	BookingRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_booking_rejected_total",
		Help: "Total booking requests rejected at validation",
	})
	OffersDirect = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_offer_direct_sent_total",
		Help: "Total ride offers delivered over live driver connections",
	})
	OffersPush = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_offer_push_sent_total",
		Help: "Total ride offers delivered via push notification",
	})
	AcceptWins = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_accept_wins_total",
		Help: "Total acceptance attempts that won the ledger race",
	})
	AcceptConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_accept_conflicts_total",
		Help: "Total acceptance attempts rejected because the ride was taken",
	})
	RidesCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_rides_completed_total",
		Help: "Total rides that reached the completed state",
	})
	WSConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_ws_connections",
		Help: "Currently open websocket connections",
	})
)

func init() {
	prometheus.MustRegister(
		RidesBooked, BookingRejected,
		OffersDirect, OffersPush,
		AcceptWins, AcceptConflicts, RidesCompleted,
		WSConnections,
	)
}
