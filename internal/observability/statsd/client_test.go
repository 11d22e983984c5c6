package statsd

import (
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"
)

func TestSanitizePrefix(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"  forecast.worker  ": "forecast.worker",
		"..forecast..":        "forecast",
		".":                   "",
		"":                    "",
	}

	for input, want := range tests {
		if got := sanitizePrefix(input); got != want {
			t.Fatalf("sanitizePrefix(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizeMetricName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		" job/claim ":        "job_claim",
		"forecast..results":  "forecast.results",
		"two  spaces":        "two__spaces",
		"reaper:sweep|total": "reaper_sweep_total",
	}

	for input, want := range tests {
		if got := normalizeMetricName(input); got != want {
			t.Fatalf("normalizeMetricName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFormatTags(t *testing.T) {
	t.Parallel()

	global := map[string]string{
		"env":       "prod",
		" service ": " forecast-worker ",
	}
	local := map[string]string{
		"result": " done ",
		"":       "ignored",
		"env":    "stage",
	}

	got := formatTags(global, local)
	want := "|#env:stage,result:done,service:forecast-worker"
	if got != want {
		t.Fatalf("formatTags mismatch\n got: %q\nwant: %q", got, want)
	}

	if got := formatTags(nil, nil); got != "" {
		t.Fatalf("formatTags(nil, nil) = %q, want empty string", got)
	}
}

func TestClientWritesLines(t *testing.T) {
	t.Parallel()

	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	client := &Client{
		prefix:     "forecast",
		conn:       clientConn,
		globalTags: map[string]string{"env": "test"},
		logger:     slog.Default(),
	}

	lines := make(chan string, 3)
	go func() {
		buf := make([]byte, 256)
		for range 3 {
			n, err := peerConn.Read(buf)
			if err != nil {
				return
			}
			lines <- string(buf[:n])
		}
	}()

	client.Count("job.claimed", 1, map[string]string{"job_type": "daily"})
	client.Gauge("queue.pending", 4.5, nil)
	client.Timing("job.duration", 1500*time.Millisecond, nil)

	want := []string{
		"forecast.job.claimed:1|c|#env:test,job_type:daily",
		"forecast.queue.pending:4.5|g|#env:test",
		"forecast.job.duration:1500|ms|#env:test",
	}
	for _, w := range want {
		select {
		case got := <-lines:
			if got != w {
				t.Fatalf("line = %q, want %q", got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", w)
		}
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
}

func TestClientEnabledAndClose(t *testing.T) {
	t.Parallel()

	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	client := &Client{conn: clientConn}
	if !client.Enabled() {
		t.Fatal("expected client.Enabled to report true with active connection")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if client.Enabled() {
		t.Fatal("expected client.Enabled to report false after Close")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close (second call) error: %v", err)
	}

	var nilClient *Client
	if nilClient.Enabled() {
		t.Fatal("nil client should report disabled")
	}
	nilClient.Count("ignored", 1, nil)
	if err := nilClient.Close(); err != nil {
		t.Fatalf("nil client Close error: %v", err)
	}
}

func TestNewClientDisabledWithoutAddress(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{Enabled: true, Address: "   "})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	if client.Enabled() {
		t.Fatal("expected client to stay disabled when address is empty")
	}
}

func TestNewClientDialError(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Enabled: true, Address: "bad address"})
	if err == nil {
		t.Fatal("expected NewClient to error for invalid address")
	}
	if !strings.Contains(err.Error(), "statsd dial") {
		t.Fatalf("unexpected error: %v", err)
	}
}
