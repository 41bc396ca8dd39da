package promptstyle

import "regexp"

var placeholder = regexp.MustCompile(`\{\{(\w+)\}\}`)

// ExtractVariables returns the names of {{name}} placeholders in content,
// deduplicated, in order of first appearance. Names are ASCII word characters.
func ExtractVariables(content string) []string {
	matches := placeholder.FindAllStringSubmatch(content, -1)
	out := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
