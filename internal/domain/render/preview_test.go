package render

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecanvas/pagecanvas-go/internal/domain/entities/builder"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/entities/datasource"
)

func TestFormatPrice(t *testing.T) {
	cases := []struct {
		name  string
		price float64
		want  string
	}{
		{"zero", 0, "0đ"},
		{"small", 500, "500đ"},
		{"thousands", 1290, "1.290đ"},
		{"millions", 1290000, "1.290.000đ"},
		{"rounds", 999.6, "1.000đ"},
		{"negative", -25000, "-25.000đ"},
		{"nan", math.NaN(), "0đ"},
		{"inf", math.Inf(1), "0đ"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatPrice(tc.price))
		})
	}
}

func TestPreviewResolvesBoundText(t *testing.T) {
	eng := newTestEngine(t)
	addCollection(t, eng, "col-1", map[string]any{
		builder.PropRenderMode: "data",
		builder.PropDataSource: "static",
		builder.PropData: []any{
			map[string]any{"title": "Flash Sale"},
			map[string]any{"title": "Combo Deal"},
		},
	})
	r := NewRenderer(&stubResolver{}, nil)

	// Expand once so the item containers exist, then author a bound leaf
	// into the first one.
	_, err := r.Expand(context.Background(), eng, "col-1")
	require.NoError(t, err)
	require.NoError(t, eng.AddNode(&builder.Node{
		ID:          "text-1",
		Parent:      "col-1-item-0",
		DisplayName: builder.DisplayNameText,
		Props: map[string]any{
			"text":                   "fallback",
			builder.PropUseDataBinding: true,
			builder.PropField:          "title",
		},
	}))

	tree, err := r.Preview(context.Background(), eng)
	require.NoError(t, err)
	require.Equal(t, builder.RootNodeID, tree.ID)
	require.Len(t, tree.Children, 1)

	col := tree.Children[0]
	require.Len(t, col.Children, 2)
	item0 := col.Children[0]
	require.Len(t, item0.Children, 1)
	assert.Equal(t, "Flash Sale", item0.Children[0].Props["text"])
	// The same leaf does not exist under the second item container.
	assert.Empty(t, col.Children[1].Children)
}

func TestPreviewResolvesCard(t *testing.T) {
	eng := newTestEngine(t)
	addCollection(t, eng, "col-1", map[string]any{
		builder.PropRenderMode: "data",
		builder.PropDataSource: "static",
		builder.PropData: []any{
			map[string]any{
				"title":           "Milk Tea Combo",
				"imageUrl":        "https://cdn.example.test/combo.webp",
				"originalPrice":   float64(1290000),
				"discountedPrice": float64(990000),
				"voucherCode":     "SAVE300",
			},
		},
	})
	r := NewRenderer(&stubResolver{}, nil)
	_, err := r.Expand(context.Background(), eng, "col-1")
	require.NoError(t, err)
	require.NoError(t, eng.AddNode(&builder.Node{
		ID:          "card-1",
		Parent:      "col-1-item-0",
		DisplayName: builder.DisplayNameProductCard,
		Props: map[string]any{
			builder.PropUseDataBinding: true,
			"title":                    "title",
			"imageUrl":                 "imageUrl",
			"originalPrice":            "originalPrice",
			"discountedPrice":          "discountedPrice",
			"voucherCode":              "voucherCode",
		},
	}))

	tree, err := r.Preview(context.Background(), eng)
	require.NoError(t, err)
	card := tree.Children[0].Children[0].Children[0]
	assert.Equal(t, "https://cdn.example.test/combo.webp", card.Props["imageUrl"])
	assert.Equal(t, "SAVE300", card.Props["voucherCode"])
	assert.Equal(t, float64(1290000), card.Props["originalPrice"])
	assert.Equal(t, "1.290.000đ", card.Props["originalPriceFormatted"])
	assert.Equal(t, "990.000đ", card.Props["discountedPriceFormatted"])
}

func TestPreviewCardLiteralPrices(t *testing.T) {
	eng := newTestEngine(t)
	require.NoError(t, eng.AddNode(&builder.Node{
		ID:          "card-1",
		Parent:      builder.RootNodeID,
		DisplayName: builder.DisplayNameProductCard,
		Props: map[string]any{
			"title":           "Standalone",
			"originalPrice":   float64(49000),
			"discountedPrice": "abc",
		},
	}))
	r := NewRenderer(&stubResolver{}, nil)

	tree, err := r.Preview(context.Background(), eng)
	require.NoError(t, err)
	card := tree.Children[0]
	assert.Equal(t, "49.000đ", card.Props["originalPriceFormatted"])
	assert.Equal(t, "0đ", card.Props["discountedPriceFormatted"])
}

func TestPreviewErrorPlaceholder(t *testing.T) {
	eng := newTestEngine(t)
	addCollection(t, eng, "col-1", map[string]any{
		builder.PropRenderMode: "data",
		builder.PropDataSource: "static",
	})
	r := NewRenderer(&stubResolver{dataset: &datasource.Dataset{
		Records: []datasource.Record{}, Fields: []string{}, Error: "network error: connection refused",
	}}, nil)

	tree, err := r.Preview(context.Background(), eng)
	require.NoError(t, err)
	require.Len(t, tree.Children, 1)
	placeholder := tree.Children[0].Children[0]
	assert.Equal(t, "col-1-placeholder", placeholder.ID)
	assert.Equal(t, "error", placeholder.Props["state"])
	assert.Equal(t, "network error: connection refused", placeholder.Props["message"])
}

func TestPreviewColumnsMode(t *testing.T) {
	eng := newTestEngine(t)
	addCollection(t, eng, "col-1", map[string]any{
		builder.PropRenderMode: "columns",
		builder.PropColumns:    2,
	})
	r := NewRenderer(&stubResolver{}, nil)
	_, err := r.Expand(context.Background(), eng, "col-1")
	require.NoError(t, err)
	require.NoError(t, eng.AddNode(&builder.Node{
		ID:          "text-1",
		Parent:      "col-1-column-1",
		DisplayName: builder.DisplayNameText,
		Props:       map[string]any{"text": "static copy"},
	}))

	tree, err := r.Preview(context.Background(), eng)
	require.NoError(t, err)
	col := tree.Children[0]
	require.Len(t, col.Children, 2)
	// No ambient record in columns mode, so the literal prop survives.
	assert.Equal(t, "static copy", col.Children[1].Children[0].Props["text"])
}

func TestPreviewRequiresRoot(t *testing.T) {
	eng := newTestEngine(t)
	require.NoError(t, eng.RemoveNode(builder.RootNodeID))
	r := NewRenderer(&stubResolver{}, nil)
	_, err := r.Preview(context.Background(), eng)
	assert.Error(t, err)
}
