package cache

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/jellydator/ttlcache/v3"
)

// Memory is an in-process cache with per-entry expiry.
type Memory struct {
	items *ttlcache.Cache[string, []byte]
}

// NewMemory creates an in-process cache and starts its expiry loop.
// Call Close to stop the loop.
func NewMemory() *Memory {
	items := ttlcache.New[string, []byte](
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go items.Start()
	return &Memory{items: items}
}

// Close stops the expiry loop.
func (m *Memory) Close() error {
	m.items.Stop()
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	item := m.items.Get(key)
	if item == nil || item.IsExpired() {
		return nil, false, nil
	}
	return item.Value(), true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.items.Set(key, stored, ttl)
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.items.Delete(key)
	return nil
}

func (m *Memory) DeleteByPattern(ctx context.Context, pattern string) error {
	re := globRegexp(pattern)
	for _, key := range m.items.Keys() {
		if re.MatchString(key) {
			m.items.Delete(key)
		}
	}
	return nil
}

// globRegexp translates a Redis-style glob into an anchored regexp. * spans
// any characters, '/' and newlines included. [...] classes accept ranges and a
// leading ^, and \ escapes the next character. An unclosed [ is literal.
func globRegexp(pattern string) *regexp.Regexp {
	p := []rune(pattern)
	var b strings.Builder
	b.WriteString("(?s)^")
	for i := 0; i < len(p); i++ {
		switch p[i] {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '\\':
			if i+1 < len(p) {
				i++
			}
			b.WriteString(regexp.QuoteMeta(string(p[i])))
		case '[':
			class, end, ok := globClass(p, i+1)
			if !ok {
				b.WriteString(`\[`)
				continue
			}
			b.WriteString(class)
			i = end
		default:
			b.WriteString(regexp.QuoteMeta(string(p[i])))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

// globClass reads a bracket class starting just after '[' and returns its
// regexp form plus the index of the closing ']'.
func globClass(p []rune, start int) (string, int, bool) {
	i := start
	negate := i < len(p) && p[i] == '^'
	if negate {
		i++
	}
	var members strings.Builder
	for ; i < len(p); i++ {
		switch {
		case p[i] == ']':
			if members.Len() == 0 {
				if negate {
					return ".", i, true
				}
				return `[^\x00-\x{10FFFF}]`, i, true
			}
			if negate {
				return "[^" + members.String() + "]", i, true
			}
			return "[" + members.String() + "]", i, true
		case p[i] == '\\' && i+1 < len(p):
			i++
			members.WriteString(classRune(p[i]))
		case i+2 < len(p) && p[i+1] == '-':
			lo, hi := p[i], p[i+2]
			if lo > hi {
				lo, hi = hi, lo
			}
			members.WriteString(classRune(lo) + "-" + classRune(hi))
			i += 2
		default:
			members.WriteString(classRune(p[i]))
		}
	}
	return "", 0, false
}

func classRune(r rune) string {
	if r < utf8.RuneSelf && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
		return `\` + string(r)
	}
	return string(r)
}

// Len reports the number of stored entries, expired ones included until swept.
func (m *Memory) Len() int {
	return m.items.Len()
}
