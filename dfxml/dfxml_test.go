package dfxml

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestXMLMapSortedAndEscaped(t *testing.T) {
	m := map[string]string{
		"filename": "A&B.TXT",
		"attrib":   "32",
		"filesize": "100",
	}
	out := XMLMap(m, "fileobject", "src='fat'")
	assert.Equal(t,
		"<fileobject src='fat'><attrib>32</attrib><filename>A&amp;B.TXT</filename><filesize>100</filesize></fileobject>",
		out)
}

func TestXMLMapNoAttrs(t *testing.T) {
	out := XMLMap(map[string]string{"k": "<v>"}, "note", "")
	assert.Equal(t, "<note><k>&lt;v&gt;</k></note>", out)
}
