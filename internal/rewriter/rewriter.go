// Package rewriter renames library symbols in source text by prepending a marker.
package rewriter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// DefaultMarker is prepended to every matched symbol.
const DefaultMarker = "ffmpeg_static_"

// DefaultPrefixes returns the FFmpeg symbol families renamed by default.
func DefaultPrefixes() []string {
	return []string{
		"av_",
		"avcodec_",
		"avdevice_",
		"avfilter_",
		"avformat_",
		"avutil_",
		"avio_",
		"avpriv_",
		"avsubtitle_",
		"ff_",
		"postproc_",
		"sws_",
		"swscale_",
		"swr_",
		"swresample_",
		"pp_",
	}
}

// tokenPattern matches a maximal run of word characters. Letters and digits
// outside ASCII count as word characters so that a prefix glued to one of
// them is not treated as starting a token.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// identifierPattern describes the characters allowed in prefixes and markers.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

var (
	// ErrNoPrefixes is returned when the prefix set is empty.
	ErrNoPrefixes = errors.New("at least one prefix is required")
	// ErrInvalidPrefix is returned for an empty prefix or one with non-identifier characters.
	ErrInvalidPrefix = errors.New("invalid prefix")
	// ErrInvalidMarker is returned for an empty marker or one with non-identifier characters.
	ErrInvalidMarker = errors.New("invalid marker")
)

// Result is the outcome of rewriting one buffer.
type Result struct {
	Content  string
	Renamed  int            // Tokens renamed across all prefixes
	ByPrefix map[string]int // Renamed tokens per prefix, only prefixes with hits
}

// Changed reports whether the rewritten content differs from original.
func (r Result) Changed(original string) bool {
	return r.Content != original
}

// Rewriter applies the marker to tokens starting with any configured prefix.
// A Rewriter is immutable and safe for concurrent use.
type Rewriter struct {
	prefixes []string
	marker   string
	doubled  string
}

// New creates a Rewriter for the given prefixes, applied in order, and marker.
func New(prefixes []string, marker string) (*Rewriter, error) {
	if len(prefixes) == 0 {
		return nil, ErrNoPrefixes
	}
	for i, p := range prefixes {
		if !IsIdentifier(p) {
			return nil, fmt.Errorf("%w: prefixes[%d] %q", ErrInvalidPrefix, i, p)
		}
	}
	if !IsIdentifier(marker) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMarker, marker)
	}

	ps := make([]string, len(prefixes))
	copy(ps, prefixes)
	return &Rewriter{
		prefixes: ps,
		marker:   marker,
		doubled:  marker + marker,
	}, nil
}

// Default returns a Rewriter using DefaultPrefixes and DefaultMarker.
func Default() *Rewriter {
	r, err := New(DefaultPrefixes(), DefaultMarker)
	if err != nil {
		panic(err)
	}
	return r
}

// IsIdentifier reports whether s is a non-empty run of ASCII letters, digits or underscores.
func IsIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// Prefixes returns a copy of the configured prefixes.
func (r *Rewriter) Prefixes() []string {
	out := make([]string, len(r.prefixes))
	copy(out, r.prefixes)
	return out
}

// Marker returns the configured marker.
func (r *Rewriter) Marker() string {
	return r.marker
}

// Rewrite returns content with every matching token renamed.
func (r *Rewriter) Rewrite(content string) string {
	return r.Apply(content).Content
}

// Apply rewrites content and reports how many tokens each prefix renamed.
//
// Prefixes are folded over the content in order. After the last prefix, any
// doubled marker anywhere in the content is collapsed to a single one.
func (r *Rewriter) Apply(content string) Result {
	res := Result{ByPrefix: make(map[string]int)}

	for _, prefix := range r.prefixes {
		n := 0
		content = tokenPattern.ReplaceAllStringFunc(content, func(token string) string {
			if !r.matches(token, prefix) {
				return token
			}
			n++
			return r.marker + token
		})
		if n > 0 {
			res.ByPrefix[prefix] += n
			res.Renamed += n
		}
	}

	res.Content = r.collapse(content)
	return res
}

// collapse replaces doubled markers until none remain. A single ReplaceAll
// would turn three consecutive markers into two.
func (r *Rewriter) collapse(content string) string {
	for strings.Contains(content, r.doubled) {
		content = strings.ReplaceAll(content, r.doubled, r.marker)
	}
	return content
}

// matches reports whether token should be renamed for prefix.
func (r *Rewriter) matches(token, prefix string) bool {
	if len(token) <= len(prefix) || !strings.HasPrefix(token, prefix) {
		return false
	}
	if strings.HasPrefix(token, r.marker) {
		return false
	}
	for i := len(prefix); i < len(token); i++ {
		if !isASCIIWordByte(token[i]) {
			return false
		}
	}
	return true
}

func isASCIIWordByte(c byte) bool {
	return c == '_' ||
		('a' <= c && c <= 'z') ||
		('A' <= c && c <= 'Z') ||
		('0' <= c && c <= '9')
}
