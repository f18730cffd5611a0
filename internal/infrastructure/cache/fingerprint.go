package cache

import (
	"sort"
	"strconv"
	"strings"
)

// Fingerprint builds the canonical cache key for a query. Topic order and
// query whitespace or case do not change the result.
func Fingerprint(topicIDs []string, query, resultType string, size int) string {
	ids := make([]string, 0, len(topicIDs))
	for _, id := range topicIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString("topics=")
	b.WriteString(strconv.Itoa(len(ids)))
	for _, id := range ids {
		writeComponent(&b, ",", id)
	}
	writeComponent(&b, "|q=", normalizeQuery(query))
	writeComponent(&b, "|type=", strings.ToLower(strings.TrimSpace(resultType)))
	b.WriteString("|n=")
	b.WriteString(strconv.Itoa(size))
	return b.String()
}

// writeComponent length-prefixes value so separators inside free text can
// never make two different queries share a key.
func writeComponent(b *strings.Builder, sep, value string) {
	b.WriteString(sep)
	b.WriteString(strconv.Itoa(len(value)))
	b.WriteByte(':')
	b.WriteString(value)
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
