package flatten

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/tinytelemetry/evtxcsv/internal/model"
)

const userDataPrefix = "UD_"

// flattenUserData flattens every top-level child of <UserData> into UD_*
// columns. The top-level element names (for example EventXML) do not take
// part in the keys; a later top-level child overwrites equal keys.
func flattenUserData(el *etree.Element, row *model.Row) {
	for _, top := range el.ChildElements() {
		for k, v := range flattenNode(top, "").All() {
			row.Set(userDataPrefix+k, v)
		}
	}
}

// flattenNode flattens the children of el. Keys are the local tag names joined
// with "_" along the ancestor chain. Leaves carry their trimmed text, sibling
// leaves that share a key get _2, _3, ... suffixes, and every attribute adds a
// <key>_<attr> column.
func flattenNode(el *etree.Element, prefix string) *model.Row {
	out := model.NewRow(8)
	for _, child := range el.ChildElements() {
		key := prefix + child.Tag
		if len(child.ChildElements()) > 0 {
			for k, v := range flattenNode(child, key+"_").All() {
				out.Set(k, v)
			}
		} else {
			key = uniqueKey(out, key)
			out.Set(key, text(child))
		}
		for _, a := range child.Attr {
			if isNamespaceDecl(a) {
				continue
			}
			out.Set(key+"_"+a.Key, strings.TrimSpace(a.Value))
		}
	}
	return out
}

// uniqueKey returns key if unused, otherwise the first of key_2, key_3, ...
// not yet present. Worst case is linear in the number of earlier collisions
// for the same key.
func uniqueKey(row *model.Row, key string) string {
	if !row.Has(key) {
		return key
	}
	for i := 2; ; i++ {
		candidate := key + "_" + strconv.Itoa(i)
		if !row.Has(candidate) {
			return candidate
		}
	}
}

func isNamespaceDecl(a etree.Attr) bool {
	return a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns")
}
