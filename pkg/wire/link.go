package wire

import (
	"strings"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
)

// LinkParam is one attribute of a CoRE link. An empty Value renders as a
// bare key.
type LinkParam struct {
	Key   string
	Value string
}

// Link is one entry of a CoRE Link Format document.
type Link struct {
	Target model.URI
	Params []LinkParam
}

// EncodeLinks renders links in CoRE Link Format (RFC 6690):
//
//	</3/0>;pmin=10,</3/0/1>,</3/0/6>;dim=2
func EncodeLinks(links []Link) []byte {
	var b strings.Builder
	for i, l := range links {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString("<")
		b.WriteString(l.Target.String())
		b.WriteString(">")
		for _, p := range l.Params {
			b.WriteByte(';')
			b.WriteString(p.Key)
			if p.Value != "" {
				b.WriteByte('=')
				b.WriteString(p.Value)
			}
		}
	}
	return []byte(b.String())
}
