package decoder

import (
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var invisible = strings.NewReplacer(
	"\u200b", "",
	"\u200c", "",
	"\u200d", "",
	"\u2060", "",
	"\ufeff", "",
	"\u00ad", "",
	"\u00a0", " ",
	"\u3000", " ",
	"\r\n", "\n",
	"\r", "\n",
)

// Normalize removes encoding noise from extracted text: line endings become
// "\n", text is NFC-composed, full-width ASCII letters, digits and punctuation
// fold to their narrow forms and invisible characters are dropped. CJK
// ideographs are left as they are.
func Normalize(s string) string {
	s = invisible.Replace(s)
	s = norm.NFC.String(s)
	return width.Fold.String(s)
}
