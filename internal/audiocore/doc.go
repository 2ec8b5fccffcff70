// Package audiocore holds the pieces every part of the pipeline shares:
// sample formats and descriptor parsing, the Source interface that all
// capture variants implement, the per-source SampleBuffer, and Stream, the
// single multi-channel history that the capture merger writes and playback,
// spectrogram workers and waveform readers consume.
//
// Architecture overview:
//
//	Source... -> capture.Merger -> Stream{ringbuf, wavecache} -> {player, spectrogram, UI}
//
// All samples inside the pipeline are signed 16-bit, interleaved, at the
// stream sample rate. Sources convert whatever they read into that layout
// before the merger sees it.
package audiocore
