package dfxml

import (
	"sort"
	"strings"
)

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// XMLMap serializes a key/value map as a one line DFXML element, keys in
// sorted order so repeated runs emit identical reports.
func XMLMap(m map[string]string, tag string, attrs string) string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("<" + tag)
	if attrs != "" {
		sb.WriteString(" " + attrs)
	}
	sb.WriteString(">")
	for _, key := range keys {
		sb.WriteString("<" + key + ">" + escaper.Replace(m[key]) + "</" + key + ">")
	}
	sb.WriteString("</" + tag + ">")
	return sb.String()
}
