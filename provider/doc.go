// Package provider is the common contract for remote capabilities
// (speech-to-text, diarization, voice embedding, LLM enrichment).
//
// Backends register a Factory under a name. At startup the worker turns
// each configured backend into a Capability: Available with a live
// implementation, or Unavailable with the reason. Optional pipeline stages
// branch on the capability instead of on nil checks.
//
//	reg := provider.NewRegistry[diarization.Provider]()
//	reg.RegisterFactory(pyannote.ProviderName, pyannote.Factory())
//	diarize := provider.Resolve(reg, cfg.Provider, cfg.Options)
//	if d, ok := diarize.Get(); ok { ... }
package provider
