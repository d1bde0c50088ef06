package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should use the defaults", func() {
				So(manager, ShouldNotBeNil)
				So(manager.Enabled(), ShouldBeTrue)
				So(manager.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_ns"),
				WithSubsystem("test_sub"),
				WithMetricPrefix("pre"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithMetricsEnabled(false),
				WithRefreshInterval(3*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.boardEntries.WithLabelValues("round1").Set(4)

			Convey("Then metric names carry namespace, subsystem and prefix", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_ns_test_sub_pre_board_entries" {
						found = true
						So(f.GetMetric()[0].GetLabel(), ShouldNotBeEmpty)
					}
				}
				So(found, ShouldBeTrue)
				So(manager.Enabled(), ShouldBeFalse)
				So(manager.RefreshInterval(), ShouldEqual, 3*time.Second)
			})
		})

		Convey("When options receive empty values", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithRefreshInterval(0),
				WithCustomLabels(nil),
				WithPrometheusRegistry(registry),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "cfcc")
				So(manager.subsystem, ShouldEqual, "leaderboard")
				So(len(manager.histogramBuckets), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics", t, func() {
		Convey("When recording upstream requests", func() {
			before := value(globalManager.upstreamRequests.WithLabelValues("registry_games", OutcomeOK))
			RecordUpstreamRequest("registry_games", OutcomeOK, 12)
			UpdateUpstreamRecords("registry_games", 5)

			Convey("Then the counter and gauge move", func() {
				after := value(globalManager.upstreamRequests.WithLabelValues("registry_games", OutcomeOK))
				So(after-before, ShouldEqual, 1.0)
				So(value(globalManager.upstreamRecords.WithLabelValues("registry_games")), ShouldEqual, 5.0)
			})
		})

		Convey("When recording board snapshots and staleness", func() {
			UpdateBoardSnapshot("overall", 20, time.Unix(1700000000, 0))
			So(value(globalManager.boardEntries.WithLabelValues("overall")), ShouldEqual, 20.0)
			So(value(globalManager.boardLastSuccessUnix.WithLabelValues("overall")), ShouldEqual, 1700000000.0)

			UpdateBoardStale("overall", true)
			So(value(globalManager.boardStale.WithLabelValues("overall")), ShouldEqual, 1.0)

			UpdateBoardSnapshot("overall", 21, time.Now())
			So(value(globalManager.boardStale.WithLabelValues("overall")), ShouldEqual, 0.0)
		})

		Convey("When recording refresh outcomes", func() {
			So(func() {
				RecordBoardRefresh("round1", RefreshSuccess, 40)
				RecordBoardRefresh("round1", RefreshFailure, 10)
				RecordBoardRefresh("round1", RefreshDiscarded, 0)
				RecordAggregationDuration("overall", 120)
				UpdateRegistryParticipants(20)
			}, ShouldNotPanic)
			So(value(globalManager.boardRefreshes.WithLabelValues("round1", RefreshDiscarded)), ShouldBeGreaterThanOrEqualTo, 1.0)
		})

		Convey("When recording HTTP and system metrics", func() {
			So(func() {
				RecordHTTPRequest("/leaderboard/overall", "GET", "200")
				RecordHTTPRequestDuration("/leaderboard/overall", "GET", "200", 3)
				RecordErrorByEndpoint("/leaderboard/overall", "GET", "server_error")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.2)
			}, ShouldNotPanic)
		})

		Convey("Then the custom registry exposes the service metrics", func() {
			RecordHTTPRequest("/healthz", "GET", "200")
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			names := make([]string, 0, len(families))
			for _, f := range families {
				names = append(names, f.GetName())
			}
			So(strings.Join(names, ","), ShouldContainSubstring, "cfcc_leaderboard_http_requests_total")
		})
	})
}

func value(c prometheus.Metric) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return -1
	}
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	}
	return -1
}

func TestConfigure(t *testing.T) {
	Convey("Given the global metrics rebuilt from settings", t, func() {
		Reset(func() { Configure() })

		before := GetRegistry()
		m := Configure(
			WithNamespace("cfcc_test"),
			WithMetricPrefix("svc"),
			WithHistogramBuckets([]float64{1, 2}),
			WithRefreshInterval(750*time.Millisecond),
			WithCustomLabels(map[string]string{"env": "ci"}),
		)

		Convey("Then the global manager and registry are replaced", func() {
			So(m, ShouldEqual, globalManager)
			So(GetRegistry(), ShouldNotEqual, before)
			So(RefreshInterval(), ShouldEqual, 750*time.Millisecond)
		})

		Convey("Then recorded values land under the configured names and labels", func() {
			RecordUpstreamRequest("registry_games", OutcomeOK, 1.5)
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)

			var latency *dto.MetricFamily
			for _, f := range families {
				if f.GetName() == "cfcc_test_leaderboard_svc_upstream_request_duration_milliseconds" {
					latency = f
				}
			}
			So(latency, ShouldNotBeNil)
			metric := latency.GetMetric()[0]
			So(metric.GetHistogram().GetBucket(), ShouldHaveLength, 2)

			env := ""
			for _, l := range metric.GetLabel() {
				if l.GetName() == "env" {
					env = l.GetValue()
				}
			}
			So(env, ShouldEqual, "ci")
		})

		Convey("Then disabling recording leaves the counters untouched", func() {
			Configure(WithMetricsEnabled(false))
			RecordBoardRefresh("round1", RefreshSuccess, 5)
			So(value(globalManager.boardRefreshes.WithLabelValues("round1", RefreshSuccess)), ShouldEqual, 0.0)
		})
	})
}
