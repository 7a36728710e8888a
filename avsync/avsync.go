package avsync

import "fmt"

// BytesPerFrame is the size of one interleaved 16-bit stereo sample frame.
const BytesPerFrame = 4

type Result struct {
	// Durations are in seconds.
	VideoDuration float64
	AudioDuration float64

	// Scale multiplies video timestamps so the video track lasts as long as
	// the audio track.
	Scale float64
}

func (r Result) String() string {
	return fmt.Sprintf("video=%.3fs audio=%.3fs scale=%.4f", r.VideoDuration, r.AudioDuration, r.Scale)
}

func Calculate(frames int, frameRate float64, audioBytes int64, sampleRate int) Result {
	var r Result
	if frameRate > 0 {
		r.VideoDuration = float64(frames) / frameRate
	}
	if sampleRate > 0 {
		r.AudioDuration = float64(audioBytes) / float64(sampleRate*BytesPerFrame)
	}

	r.Scale = 1.0
	if r.AudioDuration > 0 && r.VideoDuration > 0 {
		r.Scale = r.AudioDuration / r.VideoDuration
	}
	return r
}
