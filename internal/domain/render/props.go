// Package render implements Collections expansion: resolving a block's
// inline data source, fanning records out into one rendered subtree per
// record, propagating field lists to descendant leaves, and materializing
// preview trees.
package render

import (
	"github.com/pagecanvas/pagecanvas-go/internal/domain/entities/builder"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/entities/datasource"
)

// Render modes for a Collections block.
const (
	ModeColumns = "columns"
	ModeData    = "data"
)

// CollectionProps is the configuration of one Collections block, read from
// its node props with the same defaults the editor client uses.
type CollectionProps struct {
	RenderMode   string
	DataSource   string
	ItemVariable string
	Fields       []string
	Columns      int
	Layout       string
	GridGap      string
	ItemsPerRow  int

	Data []datasource.Record

	JSONData     string
	JSONDataPath string

	APIURL             string
	APIEnabled         bool
	APIDataPath        string
	APIRefreshInterval int
	APIMethod          string
	APIHeaders         map[string]string
	APIBody            string
}

// CollectionPropsFromNode reads a Collections node's props, applying the
// block defaults for anything unset.
func CollectionPropsFromNode(n *builder.Node) CollectionProps {
	props := CollectionProps{
		RenderMode:         n.StringProp(builder.PropRenderMode, ModeColumns),
		DataSource:         n.StringProp(builder.PropDataSource, string(datasource.KindStatic)),
		ItemVariable:       n.StringProp(builder.PropItemVariable, "item"),
		Fields:             n.StringsProp(builder.PropFields),
		Columns:            n.IntProp(builder.PropColumns, 3),
		Layout:             n.StringProp(builder.PropLayout, "grid"),
		GridGap:            n.StringProp(builder.PropGridGap, "16px"),
		ItemsPerRow:        n.IntProp(builder.PropItemsPerRow, 3),
		JSONData:           n.StringProp(builder.PropJSONData, ""),
		JSONDataPath:       n.StringProp(builder.PropJSONDataPath, "data"),
		APIURL:             n.StringProp(builder.PropAPIURL, ""),
		APIEnabled:         n.BoolProp(builder.PropAPIEnabled),
		APIDataPath:        n.StringProp(builder.PropAPIDataPath, "data"),
		APIRefreshInterval: n.IntProp(builder.PropAPIRefresh, 0),
		APIMethod:          n.StringProp(builder.PropAPIMethod, "GET"),
		APIBody:            n.StringProp(builder.PropAPIBody, ""),
		Data:               recordsProp(n, builder.PropData),
	}
	if headers, ok := n.Props[builder.PropAPIHeaders].(map[string]any); ok {
		props.APIHeaders = make(map[string]string, len(headers))
		for name, value := range headers {
			if s, ok := value.(string); ok {
				props.APIHeaders[name] = s
			}
		}
	}
	if props.Columns < 1 {
		props.Columns = 1
	}
	return props
}

// Descriptor builds the inline data-source descriptor this block resolves.
func (p CollectionProps) Descriptor(nodeID string) *datasource.Descriptor {
	d := &datasource.Descriptor{ID: nodeID}
	switch p.DataSource {
	case string(datasource.KindAPI):
		d.Kind = datasource.KindAPI
		d.APIURL = p.APIURL
		d.APIMethod = p.APIMethod
		d.APIHeaders = p.APIHeaders
		d.APIBody = p.APIBody
		d.APIDataPath = p.APIDataPath
		d.APIRefreshIntervalMs = p.APIRefreshInterval
	case string(datasource.KindJSON):
		d.Kind = datasource.KindJSON
		d.JSONText = p.JSONData
		d.JSONPath = p.JSONDataPath
	default:
		d.Kind = datasource.KindStatic
		d.StaticRecords = p.Data
	}
	return d
}

func recordsProp(n *builder.Node, key string) []datasource.Record {
	if n.Props == nil {
		return nil
	}
	switch v := n.Props[key].(type) {
	case []datasource.Record:
		return v
	case []any:
		out := make([]datasource.Record, 0, len(v))
		for _, item := range v {
			if rec, ok := item.(map[string]any); ok {
				out = append(out, rec)
			}
		}
		return out
	}
	return nil
}
