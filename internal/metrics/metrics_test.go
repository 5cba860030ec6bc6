package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func gatherValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == name {
			if len(mf.GetMetric()) != 1 {
				t.Fatalf("expected 1 metric for %s, got %d", name, len(mf.GetMetric()))
			}
			m := mf.GetMetric()[0]
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

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

	c.RecordPublishSuccess()
	c.RecordPublishSuccess()

	if got := gatherValue(t, reg, "contenthub_publish_success_total"); got != 2 {
		t.Errorf("publish_success_total = %v, want 2", got)
	}
}

// TestRecordPublishFailure_LabelsByReason は失敗カウンタが理由別に記録されることを検証する。
func TestRecordPublishFailure_LabelsByReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPublishFailure("retryable")
	c.RecordPublishFailure("retryable")
	c.RecordPublishFailure("permanent")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() != "contenthub_publish_fail_total" {
			continue
		}
		found = true
		if len(mf.GetMetric()) != 2 {
			t.Fatalf("expected 2 labeled metrics, got %d", len(mf.GetMetric()))
		}
		for _, m := range mf.GetMetric() {
			reason := m.GetLabel()[0].GetValue()
			val := m.GetCounter().GetValue()
			switch reason {
			case "retryable":
				if val != 2 {
					t.Errorf("retryable = %v, want 2", val)
				}
			case "permanent":
				if val != 1 {
					t.Errorf("permanent = %v, want 1", val)
				}
			default:
				t.Errorf("unexpected reason label %q", reason)
			}
		}
	}
	if !found {
		t.Error("contenthub_publish_fail_total metric not found")
	}
}

// TestRecordPublishRetry_IncrementsCounter はリトライカウンタが増加することを検証する。
func TestRecordPublishRetry_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPublishRetry()

	if got := gatherValue(t, reg, "contenthub_publish_retry_total"); got != 1 {
		t.Errorf("publish_retry_total = %v, want 1", got)
	}
}

// TestSetDuePosts_SetsGauge は期限到来投稿数ゲージが設定されることを検証する。
func TestSetDuePosts_SetsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetDuePosts(5)
	if got := gatherValue(t, reg, "contenthub_due_posts"); got != 5 {
		t.Errorf("due_posts = %v, want 5", got)
	}

	c.SetDuePosts(0)
	if got := gatherValue(t, reg, "contenthub_due_posts"); got != 0 {
		t.Errorf("due_posts = %v, want 0", got)
	}
}

// TestRecordPublishLatency_Observes はレイテンシが記録されることを検証する。
func TestRecordPublishLatency_Observes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPublishLatency(150 * time.Millisecond)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == "contenthub_publish_latency_seconds" {
			if mf.GetMetric()[0].GetHistogram().GetSampleCount() != 1 {
				t.Error("expected 1 latency observation")
			}
			return
		}
	}
	t.Error("contenthub_publish_latency_seconds metric not found")
}
