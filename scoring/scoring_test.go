package scoring

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/clout/profile"
)

func TestManual(t *testing.T) {
	tests := []struct {
		name    string
		metrics profile.Metrics
		want    profile.Scores
	}{
		{
			name: "with hashtags and healthy comments",
			metrics: profile.Metrics{
				ConsistencyScore:    80,
				CommentShare:        0.1,
				CommentsPer10kViews: 50,
				HashtagCounts:       map[string]int{"tech": 3},
			},
			want: profile.Scores{Authenticity: 80, BrandSafety: 85, AudienceMatch: 75, ContentQuality: 73},
		},
		{
			name:    "no hashtags, no comments",
			metrics: profile.Metrics{ConsistencyScore: 85},
			want:    profile.Scores{Authenticity: 85, BrandSafety: 85, AudienceMatch: 70, ContentQuality: 60},
		},
		{
			name: "view bonus capped at 20",
			metrics: profile.Metrics{
				ConsistencyScore:    85,
				CommentShare:        1,
				CommentsPer10kViews: 10000,
			},
			want: profile.Scores{Authenticity: 85, BrandSafety: 85, AudienceMatch: 70, ContentQuality: 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Manual(tt.metrics)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Manual() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestManualDeterminism(t *testing.T) {
	m := profile.Metrics{ConsistencyScore: 72.5, CommentShare: 0.123, CommentsPer10kViews: 42}
	if diff := cmp.Diff(Manual(m), Manual(m)); diff != "" {
		t.Errorf("Manual is not deterministic:\n%s", diff)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     profile.Scores
	}{
		{
			name: "well formed",
			response: "Authenticity: 82\nBrand Safety: 91\nAudience Match: 77.5\nContent Quality: 68",
			want: profile.Scores{Authenticity: 82, BrandSafety: 91, AudienceMatch: 77.5, ContentQuality: 68},
		},
		{
			name:     "empty response keeps defaults",
			response: "",
			want:     parseDefaults,
		},
		{
			name:     "chatty response with extra lines",
			response: "Sure! Here is my analysis.\nAuthenticity: 90 (very stable posting)\nUnrelated: 5\nContent Quality score is 70",
			want: profile.Scores{Authenticity: 90, BrandSafety: 85, AudienceMatch: 70, ContentQuality: 70},
		},
		{
			name:     "out of range values are clamped",
			response: "Authenticity: 150\nBrand Safety: 85\nAudience Match: 70\nContent Quality: 75",
			want:     profile.Scores{Authenticity: 100, BrandSafety: 85, AudienceMatch: 70, ContentQuality: 75},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.response)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPromptMentionsUsername(t *testing.T) {
	p := Prompt("dhruvrathee", profile.Metrics{PostsAnalyzed: 12})
	if want := "@dhruvrathee"; !strings.Contains(p, want) {
		t.Errorf("Prompt missing %q", want)
	}
	if want := "Respond in this EXACT format"; !strings.Contains(p, want) {
		t.Errorf("Prompt missing %q", want)
	}
}
