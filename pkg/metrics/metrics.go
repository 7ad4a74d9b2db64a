package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	LoginSuccess = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "login_success_total",
		Help: "Total successful login attempts",
	})

	LoginFailure = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "login_failure_total",
		Help: "Total failed login attempts",
	})

	RegisterSuccess = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "register_success_total",
		Help: "Total successful registrations",
	})

	WhispersCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "whispers_created_total",
		Help: "Total whispers created",
	})

	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messages_sent_total",
		Help: "Total direct messages sent",
	})

	FriendRequestsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "friend_requests_sent_total",
		Help: "Total friend requests sent",
	})

	ReactionsToggled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reactions_toggled_total",
		Help: "Total like/dislike toggles",
	}, []string{"target", "kind"})
)

func init() {
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(LoginSuccess)
	prometheus.MustRegister(LoginFailure)
	prometheus.MustRegister(RegisterSuccess)
	prometheus.MustRegister(WhispersCreated)
	prometheus.MustRegister(MessagesSent)
	prometheus.MustRegister(FriendRequestsSent)
	prometheus.MustRegister(ReactionsToggled)
}

// Middleware 记录请求耗时，route 使用路由模板避免路径参数导致标签爆炸
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler /metrics 路由
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
