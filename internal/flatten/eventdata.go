package flatten

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/tinytelemetry/evtxcsv/internal/model"
)

const eventDataSeparator = " | "

// flattenEventData maps <Data Name="X">v</Data> to Data_X and unnamed items to
// Data_0, Data_1, ... (counting unnamed items only). The EventData column gets
// a summary of every item in document order.
func flattenEventData(el *etree.Element, row *model.Row) {
	if el == nil {
		return
	}

	children := el.ChildElements()
	parts := make([]string, 0, len(children))
	unnamed := 0

	for _, child := range children {
		name := attr(child, "Name")
		val := text(child)
		if name != "" {
			row.Set("Data_"+name, val)
			parts = append(parts, name+"="+val)
			continue
		}
		row.Set("Data_"+strconv.Itoa(unnamed), val)
		parts = append(parts, val)
		unnamed++
	}

	row.Set("EventData", strings.Join(parts, eventDataSeparator))
}
