package classify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/goodtune/focuswatch/pkg/window"
)

func TestKeywordClassify(t *testing.T) {
	k := NewKeyword([]string{"YouTube", " reddit ", ""}, 5*time.Minute)

	tests := []struct {
		name       string
		info       window.Info
		goal       string
		distracted bool
		reason     string
	}{
		{
			name:       "title match ignores case",
			info:       window.Info{Title: "Cats - YOUTUBE - Firefox", ProcessName: "firefox"},
			distracted: true,
			reason:     `window title matches distraction keyword "youtube"`,
		},
		{
			name:       "process match",
			info:       window.Info{Title: "Home", ProcessName: "reddit-desktop"},
			distracted: true,
			reason:     `window process matches distraction keyword "reddit"`,
		},
		{
			name:       "focus goal in reason",
			info:       window.Info{Title: "youtube", ProcessName: "firefox"},
			goal:       "write report",
			distracted: true,
			reason:     `while focusing on "write report"`,
		},
		{
			name: "no match",
			info: window.Info{Title: "main.go - editor", ProcessName: "code"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := k.Classify(context.Background(), tt.info, tt.goal)
			if err != nil {
				t.Fatalf("classify: %v", err)
			}
			if res.AnalysisType != AnalysisTypeKeyword {
				t.Fatalf("unexpected analysis type %q", res.AnalysisType)
			}
			if res.Analysis.IsDistracted != tt.distracted {
				t.Fatalf("expected distracted=%v, got %+v", tt.distracted, res.Analysis)
			}
			if tt.distracted {
				if !strings.Contains(res.Analysis.Reason, tt.reason) {
					t.Fatalf("expected reason containing %q, got %q", tt.reason, res.Analysis.Reason)
				}
				if res.Analysis.Timeout != 300 {
					t.Fatalf("expected timeout 300, got %d", res.Analysis.Timeout)
				}
			}
		})
	}
}

func TestKeywordHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewKeyword([]string{"x"}, 0).Classify(ctx, window.Info{Title: "x"}, ""); err == nil {
		t.Fatal("expected context error")
	}
}
