package pricing

import "testing"

func TestFullVideoCost(t *testing.T) {
	cases := []struct {
		minutes, images, want int
	}{
		{15, 75, 78},
		{1, 5, 15},
		{1, 4, 14},
		{0, 0, 10},
		{10, 50, 55},
	}
	for _, tc := range cases {
		if got := FullVideoCost(tc.minutes, tc.images); got != tc.want {
			t.Fatalf("FullVideoCost(%d,%d) = %d, want %d", tc.minutes, tc.images, got, tc.want)
		}
	}
}

func TestImagesOnlyCost(t *testing.T) {
	if got := ImagesOnlyCost(20); got != 20 {
		t.Fatalf("ImagesOnlyCost(20) = %d, want 20", got)
	}
	if got := ImagesOnlyCost(-3); got != 0 {
		t.Fatalf("ImagesOnlyCost(-3) = %d, want 0", got)
	}
}

func TestScriptOnlyCost(t *testing.T) {
	cases := map[int]int{10: 8, 1: 4, 2: 4, 0: 3, 11: 9}
	for minutes, want := range cases {
		if got := ScriptOnlyCost(minutes); got != want {
			t.Fatalf("ScriptOnlyCost(%d) = %d, want %d", minutes, got, want)
		}
	}
}

func TestVoiceOnlyCost(t *testing.T) {
	cases := map[int]int{750: 2, 1: 1, 375: 1, 376: 2, 1500: 4, 0: 0}
	for length, want := range cases {
		if got := VoiceOnlyCost(length); got != want {
			t.Fatalf("VoiceOnlyCost(%d) = %d, want %d", length, got, want)
		}
	}
}

func TestEstimatedImages(t *testing.T) {
	if got := EstimatedImages(15); got != 75 {
		t.Fatalf("EstimatedImages(15) = %d, want 75", got)
	}
}
