package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	cases := map[int]time.Duration{0: 1, 50: 5, 99: 9, 100: 10}
	for p, want := range cases {
		if got := percentile(samples, p); got != want {
			t.Fatalf("percentile(%d) = %v, want %v", p, got, want)
		}
	}
	if got := percentile(nil, 50); got != 0 {
		t.Fatalf("percentile(nil) = %v", got)
	}
}

func TestLoadtestAgainstEmbeddedRedis(t *testing.T) {
	var out bytes.Buffer
	err := runLoadtest(context.Background(), &out, loadtestOptions{
		sessions:    20,
		concurrency: 4,
		ops:         100,
		prefix:      "lt",
	})
	if err != nil {
		t.Fatalf("runLoadtest: %v", err)
	}
	for _, want := range []string{"exists: ops=100 failures=0", "rotate: ops=100 failures=0"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestLoadtestRejectsBadOptions(t *testing.T) {
	if err := runLoadtest(context.Background(), &bytes.Buffer{}, loadtestOptions{}); err == nil {
		t.Fatal("expected error for zero options")
	}
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "migrate", "seed", "loadtest"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("subcommand %q missing: %v", name, err)
		}
	}
}
