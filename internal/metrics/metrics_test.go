package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordPublishSuccess_IncrementsCounter は公開成功カウンタが増加することを検証する。
func TestRecordPublishSuccess_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPublishSuccess("bluesky")
	c.RecordPublishSuccess("bluesky")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "crosspost_publish_success_total" {
			found = true
			if len(mf.GetMetric()) != 1 {
				t.Fatalf("expected 1 metric, got %d", len(mf.GetMetric()))
			}
			val := mf.GetMetric()[0].GetCounter().GetValue()
			if val != 2 {
				t.Errorf("publish_success_total = %v, want 2", val)
			}
		}
	}
	if !found {
		t.Error("crosspost_publish_success_total metric not found")
	}
}

// TestRecordPublishFailure_IncrementsCounterWithReasonLabel は公開失敗カウンタが
// 理由ラベル付きで増加することを検証する。
func TestRecordPublishFailure_IncrementsCounterWithReasonLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPublishFailure("bluesky", "publish")
	c.RecordPublishFailure("bluesky", "publish")
	c.RecordPublishFailure("bluesky", "account_missing")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "crosspost_publish_fail_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
			for _, m := range mf.GetMetric() {
				var reason string
				for _, label := range m.GetLabel() {
					if label.GetName() == "reason" {
						reason = label.GetValue()
					}
				}
				val := m.GetCounter().GetValue()
				switch reason {
				case "publish":
					if val != 2 {
						t.Errorf("publish_fail_total{reason=publish} = %v, want 2", val)
					}
				case "account_missing":
					if val != 1 {
						t.Errorf("publish_fail_total{reason=account_missing} = %v, want 1", val)
					}
				default:
					t.Errorf("unexpected reason label: %s", reason)
				}
			}
		}
	}
	if !found {
		t.Error("crosspost_publish_fail_total metric not found")
	}
}

// TestRecordPublishLatency_ObservesHistogram は公開レイテンシのヒストグラムに値が記録されることを検証する。
func TestRecordPublishLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPublishLatency(100 * time.Millisecond)
	c.RecordPublishLatency(2 * time.Second)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "crosspost_publish_latency_seconds" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
			}
			// 合計は0.1 + 2.0 = 2.1秒
			if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
				t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
			}
		}
	}
	if !found {
		t.Error("crosspost_publish_latency_seconds metric not found")
	}
}

// TestRecordPostsQueued_IncrementsCounter はキュー投入カウンタが増加することを検証する。
func TestRecordPostsQueued_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPostsQueued(3)
	c.RecordPostsQueued(2)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "crosspost_posts_queued_total" {
			found = true
			val := mf.GetMetric()[0].GetCounter().GetValue()
			if val != 5 {
				t.Errorf("posts_queued_total = %v, want 5", val)
			}
		}
	}
	if !found {
		t.Error("crosspost_posts_queued_total metric not found")
	}
}

// TestRecordPostsRequeued_IncrementsCounter は再キューカウンタが増加することを検証する。
func TestRecordPostsRequeued_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPostsRequeued(4)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "crosspost_posts_requeued_total" {
			found = true
			val := mf.GetMetric()[0].GetCounter().GetValue()
			if val != 4 {
				t.Errorf("posts_requeued_total = %v, want 4", val)
			}
		}
	}
	if !found {
		t.Error("crosspost_posts_requeued_total metric not found")
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPublishSuccess("bluesky")
	c.RecordPublishFailure("bluesky", "publish")
	c.RecordPublishLatency(500 * time.Millisecond)
	c.RecordPostsQueued(2)
	c.RecordPostsRequeued(1)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	expectedMetrics := []string{
		"crosspost_publish_success_total",
		"crosspost_publish_fail_total",
		"crosspost_publish_latency_seconds",
		"crosspost_posts_queued_total",
		"crosspost_posts_requeued_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はCollectorがMetricsCollectorインターフェースを実装することを検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ MetricsCollector = NewCollector(reg)
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordPublishSuccess("bluesky")
	c2.RecordPublishSuccess("bluesky")
	c2.RecordPublishSuccess("bluesky")

	metrics1, _ := reg1.Gather()
	metrics2, _ := reg2.Gather()

	var val1, val2 float64
	for _, mf := range metrics1 {
		if mf.GetName() == "crosspost_publish_success_total" {
			val1 = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	for _, mf := range metrics2 {
		if mf.GetName() == "crosspost_publish_success_total" {
			val2 = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}

	if val1 != 1 {
		t.Errorf("reg1 publish_success = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 publish_success = %v, want 2", val2)
	}
}
