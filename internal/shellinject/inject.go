package shellinject

import (
	"fmt"
	"strings"
)

const (
	injectionTrigger = "!{"

	// ShorthandArgs is the placeholder substituted with the raw invocation
	// arguments outside injection spans and with their shell-escaped form
	// inside them.
	ShorthandArgs = "{{args}}"
)

// Injection is one !{...} span found in a template. Content excludes the
// delimiters; indexes cover the whole span including them.
type Injection struct {
	StartIndex int
	EndIndex   int
	Content    string
}

// ResolvedShellInjection is an injection with its arguments substituted.
// ResolvedCommand is empty for the bare !{} directive, which passes content
// through without executing anything.
type ResolvedShellInjection struct {
	Injection
	ResolvedCommand string
}

// FindInjections scans a template for !{...} spans. Braces nest: an opening
// brace inside a span increases depth and only the matching depth-zero brace
// closes it, so commands like !{awk '{print $1}'} survive intact.
func FindInjections(template string) ([]Injection, error) {
	var out []Injection
	i := 0
	for {
		start := strings.Index(template[i:], injectionTrigger)
		if start < 0 {
			return out, nil
		}
		start += i

		depth := 0
		end := -1
		for j := start + len(injectionTrigger); j < len(template); j++ {
			switch template[j] {
			case '{':
				depth++
			case '}':
				if depth == 0 {
					end = j
				} else {
					depth--
				}
			}
			if end >= 0 {
				break
			}
		}
		if end < 0 {
			return nil, fmt.Errorf("unterminated shell injection starting at index %d", start)
		}

		out = append(out, Injection{
			StartIndex: start,
			EndIndex:   end + 1,
			Content:    template[start+len(injectionTrigger) : end],
		})
		i = end + 1
	}
}
