// Package live wraps microphone capture as a supplementary, optional
// entry point that feeds live PCM windows into the engine's
// FindSimilarFromSamples operation via the CLI's -listen verb. It sits
// outside the core fingerprinting/indexing pipeline: query, minhash,
// wavelet, and spectrogram know nothing about it.
package live

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

const (
	defaultSampleRate      = 44100
	defaultFramesPerBuffer = 1024
	defaultBufferSeconds   = 5
	maxBufferedSeconds     = 10
)

// Recorder captures microphone audio into a rolling float32 buffer at
// defaultSampleRate.
type Recorder struct {
	stream      *portaudio.Stream
	sampleRate  int
	bufferSize  int
	audioBuffer []float32
	isRecording bool
}

// NewRecorder initializes PortAudio and returns a ready Recorder.
func NewRecorder() (*Recorder, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}
	return &Recorder{
		sampleRate: defaultSampleRate,
		bufferSize: defaultFramesPerBuffer,
	}, nil
}

// Start begins continuous recording from the default input device.
func (r *Recorder) Start() error {
	if r.isRecording {
		return fmt.Errorf("recording already in progress")
	}

	device, err := portaudio.DefaultInputDevice()
	if err != nil {
		return fmt.Errorf("getting default input device: %w", err)
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: 1,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(r.sampleRate),
		FramesPerBuffer: r.bufferSize,
	}

	stream, err := portaudio.OpenStream(params, r.onAudio)
	if err != nil {
		return fmt.Errorf("opening audio stream: %w", err)
	}
	r.stream = stream
	r.isRecording = true
	return r.stream.Start()
}

func (r *Recorder) onAudio(in []float32) {
	if len(in) == 0 {
		return
	}
	r.audioBuffer = append(r.audioBuffer, in...)

	maxSamples := r.sampleRate * maxBufferedSeconds
	if len(r.audioBuffer) > maxSamples {
		drop := len(r.audioBuffer) - maxSamples
		copy(r.audioBuffer, r.audioBuffer[drop:])
		r.audioBuffer = r.audioBuffer[:maxSamples]
	}
}

// SampleRate returns the rate Window's PCM is captured at, so callers
// can resample it to whatever rate their downstream pipeline expects.
func (r *Recorder) SampleRate() int {
	return r.sampleRate
}

// Window returns the most recent seconds of captured audio as mono
// float64 PCM, ready for findSimilarFromSamples.
func (r *Recorder) Window(seconds int) []float64 {
	if seconds <= 0 {
		seconds = defaultBufferSeconds
	}
	want := r.sampleRate * seconds
	if len(r.audioBuffer) < want {
		want = len(r.audioBuffer)
	}
	start := len(r.audioBuffer) - want
	out := make([]float64, want)
	for i, v := range r.audioBuffer[start:] {
		out[i] = float64(v)
	}
	return out
}

// Stop halts recording and closes the stream.
func (r *Recorder) Stop() error {
	if !r.isRecording {
		return nil
	}
	r.isRecording = false
	if r.stream == nil {
		return nil
	}
	if err := r.stream.Stop(); err != nil {
		return err
	}
	return r.stream.Close()
}

// Close stops recording (if active) and terminates PortAudio.
func (r *Recorder) Close() error {
	if err := r.Stop(); err != nil {
		return err
	}
	return portaudio.Terminate()
}
