package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipes_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recipes_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Domain Metrics
	RecipeWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipes_writes_total",
			Help: "Total number of persisted recipe writes",
		},
		[]string{"operation"}, // "create", "update", "delete"
	)

	MembershipChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipes_membership_changes_total",
			Help: "Total number of favorite and shopping cart changes",
		},
		[]string{"relation", "action"}, // relation: "favorite", "shopping_cart"; action: "add", "remove"
	)

	FollowChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipes_follow_changes_total",
			Help: "Total number of subscriptions added or removed",
		},
		[]string{"action"},
	)
)

// RecordAPIRequest records a handled request. route is the matched route
// pattern, not the raw path, to keep label cardinality bounded.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func RecordRecipeWrite(operation string) {
	RecipeWritesTotal.WithLabelValues(operation).Inc()
}

func RecordMembershipChange(relation, action string) {
	MembershipChangesTotal.WithLabelValues(relation, action).Inc()
}

func RecordFollowChange(action string) {
	FollowChangesTotal.WithLabelValues(action).Inc()
}
