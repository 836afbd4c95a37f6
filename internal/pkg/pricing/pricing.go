// Package pricing converts generation requests into credit costs.
//
// All formulas round up to whole credits. They are evaluated in integer
// arithmetic so that half-credit boundaries never drift.
package pricing

const (
	fullVideoBase        = 10
	fullVideoPerMinute   = 2
	scriptBase           = 3
	voiceCharsPerUnit    = 750
	voiceCreditsPerUnit  = 2
	imagesPerVideoMinute = 5
)

// FullVideoCost = ceil(10 + 2*minutes + 0.5*images)
func FullVideoCost(minutes, images int) int {
	minutes, images = clamp(minutes), clamp(images)
	halves := 2*fullVideoBase + 2*fullVideoPerMinute*minutes + images
	return ceilHalf(halves)
}

// ImagesOnlyCost charges one credit per image.
func ImagesOnlyCost(images int) int {
	return clamp(images)
}

// ScriptOnlyCost = ceil(3 + 0.5*minutes)
func ScriptOnlyCost(minutes int) int {
	return ceilHalf(2*scriptBase + clamp(minutes))
}

// VoiceOnlyCost = ceil(textLength/750 * 2)
func VoiceOnlyCost(textLength int) int {
	n := voiceCreditsPerUnit * clamp(textLength)
	return (n + voiceCharsPerUnit - 1) / voiceCharsPerUnit
}

// EstimatedImages is the number of images a full video of the given length
// is expected to need.
func EstimatedImages(minutes int) int {
	return clamp(minutes) * imagesPerVideoMinute
}

func ceilHalf(halves int) int {
	return (halves + 1) / 2
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
