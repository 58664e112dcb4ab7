// Package diarization defines the speaker diarization and voice embedding
// provider interfaces.
//
// # Backends
//
//   - diarization/pyannote: pyannote HTTP sidecar serving both /diarize
//     and /embed
//
// # Usage
//
//	reg := diarization.NewRegistry()
//	reg.RegisterFactory(pyannote.ProviderName, pyannote.Factory())
//	diarize := provider.Resolve(reg, cfg.Provider, cfg.Options)
package diarization
