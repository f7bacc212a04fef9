package agents

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// promptContext renders labeled facts in insertion order. Prompts must be
// stable for the same inputs, so map iteration is not an option here.
type promptContext struct {
	b strings.Builder
}

func newPromptContext() *promptContext {
	p := &promptContext{}
	p.b.WriteString("CONTEXT:\n")
	return p
}

func (p *promptContext) section(name string) {
	fmt.Fprintf(&p.b, "\n%s:\n", name)
}

func (p *promptContext) add(label string, value any) {
	fmt.Fprintf(&p.b, "- %s: %v\n", label, value)
}

func (p *promptContext) addMoney(label string, v float64) {
	p.add(label, money(v))
}

func (p *promptContext) addPeriod(label string, start, end time.Time) {
	p.add(label, fmt.Sprintf("%s to %s", start.Format(dateLayout), end.Format(dateLayout)))
}

func (p *promptContext) String() string { return p.b.String() }

// money formats a dollar amount with thousands separators, matching how the
// figures appear in the operational reports the agents' output sits next to.
func money(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	dot := strings.IndexByte(s, '.')
	intPart, frac := s[:dot], s[dot:]

	var out strings.Builder
	if neg {
		out.WriteByte('-')
	}
	out.WriteByte('$')
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			out.WriteByte(',')
		}
		out.WriteRune(c)
	}
	out.WriteString(frac)
	return out.String()
}
