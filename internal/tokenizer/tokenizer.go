// Package tokenizer estimates token counts for text the backend didn't
// report a count for. It is grounded in the teacher's own
// internal/tokenizer/tokenizer.go, narrowed from that file's full chat-
// message/tool/image token accounting (this gateway sends a single plain
// prompt string, not a chat message list) down to the plain-text counting
// path: tiktoken-go encoding lookup with a cached encoder per model and
// the same len/4 fallback the teacher uses when no encoding is available
// for a given model name.
package tokenizer

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingCache sync.Map // model -> *tiktoken.Tiktoken

	defaultOnce sync.Once
	defaultEnc  *tiktoken.Tiktoken
)

// EstimateTokens returns text's approximate token count under model's
// encoding (spec §4.E: "client returns null counts... pipeline must
// tolerate null" — this is the best-effort estimator used to fill that
// gap; the result is still treated as approximate, never authoritative).
func EstimateTokens(model, text string) int {
	if text == "" {
		return 0
	}
	enc := getEncoding(model)
	if enc == nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

func getEncoding(model string) *tiktoken.Tiktoken {
	base := normalizeModelName(model)
	if cached, ok := encodingCache.Load(base); ok {
		enc, _ := cached.(*tiktoken.Tiktoken)
		if enc != nil {
			return enc
		}
		return getDefaultEncoding()
	}

	enc, err := tiktoken.EncodingForModel(base)
	if err != nil {
		enc = getDefaultEncoding()
	}
	if enc != nil {
		encodingCache.Store(base, enc)
	}
	return enc
}

func getDefaultEncoding() *tiktoken.Tiktoken {
	defaultOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			defaultEnc = enc
		}
	})
	return defaultEnc
}

// normalizeModelName strips a registry/path prefix ("library/llama3.1" ->
// "llama3.1") the way the teacher does before looking up an encoding,
// since tiktoken has no entry for locally-hosted model names and always
// falls through to the default encoding regardless, but a normalized name
// still makes the encodingCache key stable across equivalent references.
func normalizeModelName(model string) string {
	if model == "" {
		return model
	}
	if idx := strings.LastIndex(model, "/"); idx >= 0 && idx+1 < len(model) {
		return model[idx+1:]
	}
	return model
}
