// Package audio groups the audio sub-packages of the call engine:
//
//   - pcm: PCM16 formats, float quantization and the playback mixer
//   - resampler: streaming linear and high-quality rate conversion
//   - portaudio: live capture and playback through PortAudio
package audio
