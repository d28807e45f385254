package models

import "testing"

func TestRollUpStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
		want     string
	}{
		{"no items", nil, PostStatusScheduled},
		{"all scheduled", []string{ItemStatusScheduled, ItemStatusScheduled}, PostStatusScheduled},
		{"all published", []string{ItemStatusPublished, ItemStatusPublished, ItemStatusPublished}, PostStatusPublished},
		{"all failed", []string{ItemStatusFailed, ItemStatusFailed}, PostStatusFailed},
		{"one failed two published", []string{ItemStatusPublished, ItemStatusFailed, ItemStatusPublished}, PostStatusPartial},
		{"one failed one still pending", []string{ItemStatusFailed, ItemStatusScheduled}, PostStatusScheduled},
		{"one failed one publishing", []string{ItemStatusFailed, ItemStatusPublishing}, PostStatusScheduled},
		{"published and pending", []string{ItemStatusPublished, ItemStatusScheduled}, PostStatusScheduled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RollUpStatus(tt.statuses); got != tt.want {
				t.Errorf("RollUpStatus(%v) = %q, want %q", tt.statuses, got, tt.want)
			}
		})
	}
}

func TestIsCarousel(t *testing.T) {
	single := PostItem{Media: []MediaRef{{Kind: MediaKindImage, URL: "https://cdn.example.com/a.jpg"}}}
	if single.IsCarousel() {
		t.Error("single media item should not be a carousel")
	}

	carousel := PostItem{Media: []MediaRef{
		{Kind: MediaKindImage, URL: "https://cdn.example.com/a.jpg"},
		{Kind: MediaKindVideo, URL: "https://cdn.example.com/b.mp4"},
	}}
	if !carousel.IsCarousel() {
		t.Error("two media items should be a carousel")
	}
}
