package logging

import (
	"sort"

	"go.uber.org/zap"
)

// ZapFields converts a Fields set into a zap.Field slice, in a
// deterministic order (sorted by key) so log output is stable across
// runs — useful when tests assert on captured log lines.
func (f Fields) ZapFields() []zap.Field {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
