package featuredoc

import (
	"fmt"
	"strings"
)

type lines []string

func (l *lines) add(s string) { *l = append(*l, s) }

func (l *lines) addf(format string, args ...any) { *l = append(*l, fmt.Sprintf(format, args...)) }

func (l lines) String() string { return strings.Join(l, "\n") }
