// Package flatten turns one Windows event XML document into a flat row.
//
// The System section maps onto the fixed base columns, EventData items become
// Data_* columns and the vendor-defined UserData tree is flattened into UD_*
// columns. Flattening is deterministic: the same document always produces an
// identical row.
package flatten

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/tinytelemetry/evtxcsv/internal/logparse"
	"github.com/tinytelemetry/evtxcsv/internal/model"
)

// Flatten parses one serialized <Event> document and flattens it.
// A document that cannot be parsed yields a *SkipError.
func Flatten(doc []byte) (*model.Row, error) {
	if len(strings.TrimSpace(string(doc))) == 0 {
		return nil, &SkipError{Reason: model.SkipEmpty}
	}

	d := etree.NewDocument()
	if err := d.ReadFromBytes(doc); err != nil {
		return nil, &SkipError{Reason: model.SkipMalformed, Err: err}
	}
	root := d.Root()
	if root == nil {
		return nil, &SkipError{Reason: model.SkipEmpty}
	}
	return Element(root), nil
}

// Element flattens an already parsed <Event> element.
func Element(root *etree.Element) *model.Row {
	row := model.NewRow(len(model.BaseFields) + 16)
	for _, f := range model.BaseFields {
		row.Set(f, "")
	}

	find := func(tag string) *etree.Element { return findFirst(root, tag) }

	eventID := find("EventID")
	provider := find("Provider")
	correlation := find("Correlation")
	execution := find("Execution")
	level := text(find("Level"))

	row.Set("EventID", text(eventID))
	row.Set("EventIDQualifiers", attr(eventID, "Qualifiers"))
	row.Set("Version", text(find("Version")))
	row.Set("TimeCreated", attr(find("TimeCreated"), "SystemTime"))
	row.Set("Channel", text(find("Channel")))
	row.Set("Computer", text(find("Computer")))
	row.Set("Level", level)
	row.Set("LevelText", logparse.LevelText(level))
	row.Set("Task", text(find("Task")))
	row.Set("Opcode", text(find("Opcode")))
	row.Set("Keywords", text(find("Keywords")))
	row.Set("Provider", attr(provider, "Name"))
	row.Set("ProviderGUID", attr(provider, "Guid"))
	row.Set("EventRecordID", text(find("EventRecordID")))
	row.Set("Correlation_ActivityID", attr(correlation, "ActivityID"))
	row.Set("Correlation_RelatedActivityID", attr(correlation, "RelatedActivityID"))
	row.Set("ProcessID", attr(execution, "ProcessID"))
	row.Set("ThreadID", attr(execution, "ThreadID"))
	row.Set("UserID", attr(find("Security"), "UserID"))

	flattenEventData(childElement(root, "EventData"), row)

	if ud := childElement(root, "UserData"); ud != nil {
		flattenUserData(ud, row)
		row.Set("UserData_Raw", rawXML(ud))
	}

	row.Set("Binary", text(find("Binary")))
	return row
}

// findFirst returns the first descendant of el (document order) whose local
// name is tag. el itself is not considered.
func findFirst(el *etree.Element, tag string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if c.Tag == tag {
			return c
		}
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// childElement returns the first direct child of el whose local name is tag.
func childElement(el *etree.Element, tag string) *etree.Element {
	for _, c := range el.ChildElements() {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

func text(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return strings.TrimSpace(el.Text())
}

// attr returns the trimmed value of an unqualified attribute, or "".
func attr(el *etree.Element, name string) string {
	if el == nil {
		return ""
	}
	for _, a := range el.Attr {
		if a.Space == "" && a.Key == name {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

func rawXML(el *etree.Element) string {
	cp := el.Copy()
	inheritNamespaces(cp, el.Parent())
	doc := etree.NewDocument()
	doc.SetRoot(cp)
	s, err := doc.WriteToString()
	if err != nil {
		return ""
	}
	return s
}

// inheritNamespaces copies the namespace declarations in scope at parent
// onto el so the detached fragment keeps its prefixes bound. Declarations
// already on el, or on a nearer ancestor, win.
func inheritNamespaces(el, parent *etree.Element) {
	declared := make(map[string]bool)
	for _, a := range el.Attr {
		if isNamespaceDecl(a) {
			declared[a.FullKey()] = true
		}
	}
	n := len(el.Attr)
	for p := parent; p != nil; p = p.Parent() {
		for _, a := range p.Attr {
			if !isNamespaceDecl(a) || declared[a.FullKey()] {
				continue
			}
			declared[a.FullKey()] = true
			el.CreateAttr(a.FullKey(), a.Value)
		}
	}
	if len(el.Attr) == n {
		return
	}
	// Inherited declarations lead the attribute list.
	attrs := make([]etree.Attr, 0, len(el.Attr))
	attrs = append(attrs, el.Attr[n:]...)
	el.Attr = append(attrs, el.Attr[:n]...)
}
