// Package transcription defines the speech-to-text provider interface and
// the result shape the pipeline consumes.
//
// # Backends
//
//   - transcription/whisper: faster-whisper HTTP sidecar ("whisper") or a
//     local command printing the same JSON ("whisper-cli")
//
// # Usage
//
//	reg := transcription.NewRegistry()
//	reg.RegisterFactory(whisper.ProviderName, whisper.Factory())
//	stt, err := reg.Create(cfg.Provider, cfg.Options)
//	res, err := stt.Transcribe(ctx, transcription.Request{AudioPath: path})
package transcription
