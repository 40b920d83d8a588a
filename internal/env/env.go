package env

import (
	"os"
	"strings"
)

// Merge composes the environment for a control script: the full OS
// environment with overrides ("K=V") applied on top. ${VAR} references in
// override values are expanded against the composed map (single pass, no
// recursion).
func Merge(overrides []string) []string {
	m := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			if k := kv[:i]; k != "" {
				m[k] = kv[i+1:]
			}
		}
	}
	for _, kv := range overrides {
		i := strings.IndexByte(kv, '=')
		if i <= 0 {
			continue // malformed or empty key
		}
		m[kv[:i]] = expand(kv[i+1:], m)
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	return out
}

func expand(s string, m map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	res := s
	for k, v := range m {
		res = strings.ReplaceAll(res, "${"+k+"}", v)
	}
	return res
}
