package catalog

import (
	"context"

	"github.com/angelmondragon/storefront/internal/refcache"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/pagination"
)

// Normalizer turns raw catalog records into canonical values, feeding the
// reference cache as it goes.
type Normalizer struct {
	cache *refcache.Cache
	logg  *logger.Logger
}

// NewNormalizer builds a Normalizer. A nil logger discards diagnostics.
func NewNormalizer(cache *refcache.Cache, logg *logger.Logger) *Normalizer {
	if cache == nil {
		cache = refcache.New()
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Normalizer{cache: cache, logg: logg}
}

// Cache returns the reference cache the normalizer writes to.
func (n *Normalizer) Cache() *refcache.Cache {
	return n.cache
}

// NormalizeVariant maps one raw variant record.
func (n *Normalizer) NormalizeVariant(ctx context.Context, raw RawRecord) Variant {
	n.record(raw)
	return n.variant(ctx, raw, nil)
}

// NormalizeVariants records every record before mapping any of them, so a
// record lacking a populated reference can use one populated by a sibling.
func (n *Normalizer) NormalizeVariants(ctx context.Context, raws []RawRecord) []Variant {
	for _, raw := range raws {
		n.record(raw)
	}
	out := make([]Variant, 0, len(raws))
	for _, raw := range raws {
		out = append(out, n.variant(ctx, raw, nil))
	}
	return out
}

// NormalizeDesign maps one raw grouped design record with its nested variants.
func (n *Normalizer) NormalizeDesign(ctx context.Context, raw RawRecord) Design {
	n.recordDesign(raw)
	return n.design(ctx, raw)
}

// NormalizePage maps a page envelope. A response with success=false or
// without data.items is returned as Raw.
func (n *Normalizer) NormalizePage(ctx context.Context, raw RawPage, groupBy GroupBy) PageResult {
	data, items, ok := pageItems(raw)
	if !ok {
		n.logg.Debug(ctx, "catalog page not in canonical shape; passing through")
		return PageResult{Raw: raw}
	}

	meta := pageMeta(data, len(items))
	if groupBy == GroupByDesign {
		for _, item := range items {
			n.recordDesign(item)
		}
		designs := make([]Design, 0, len(items))
		for _, item := range items {
			designs = append(designs, n.design(ctx, item))
		}
		return PageResult{Designs: &Page[Design]{
			Items: designs, Total: meta.Total, Page: meta.Page, Limit: meta.Limit, TotalPages: meta.TotalPages,
		}}
	}

	variants := n.NormalizeVariants(ctx, items)
	return PageResult{Variants: &Page[Variant]{
		Items: variants, Total: meta.Total, Page: meta.Page, Limit: meta.Limit, TotalPages: meta.TotalPages,
	}}
}

func (n *Normalizer) recordDesign(raw RawRecord) {
	n.record(raw)
	for _, v := range asObjects(raw["variants"]) {
		n.record(v)
	}
}

func (n *Normalizer) variant(ctx context.Context, raw RawRecord, parent RawRecord) Variant {
	r := layered{raw, parent}
	prices := priceOf(r)
	stock, _ := layered{raw}.int("stockQuantity", "stock", "inventory")
	if stock < 0 {
		stock = 0
	}
	return Variant{
		ID:            recordID(layered{raw}),
		Name:          r.str("name", "title"),
		Description:   r.str("description"),
		ImageURL:      imageOf(r),
		BasePrice:     prices.Base,
		FinalPrice:    prices.Final,
		SizeName:      n.extract(ctx, layered{raw}, sizeRule),
		TypeName:      n.extract(ctx, r, typeRule),
		StockQuantity: stock,
	}
}

func (n *Normalizer) design(ctx context.Context, raw RawRecord) Design {
	r := layered{raw}
	rawVariants := asObjects(raw["variants"])
	variants := make([]Variant, 0, len(rawVariants))
	for _, rv := range rawVariants {
		variants = append(variants, n.variant(ctx, rv, raw))
	}

	d := Design{
		ID:                 r.str("_id", "id", "designId"),
		Name:               r.str("name", "title"),
		Description:        r.str("description"),
		TypeName:           n.extract(ctx, r, typeRule),
		Variants:           variants,
		AvailableSizeNames: availableSizes(raw["availableSizes"]),
	}
	if len(variants) > 0 {
		d.RepresentativeBasePrice = variants[0].BasePrice
		d.RepresentativeFinalPrice = variants[0].FinalPrice
	} else {
		prices := priceOf(r)
		d.RepresentativeBasePrice = prices.Base
		d.RepresentativeFinalPrice = prices.Final
	}
	return d
}

// availableSizes copies the backend's computed list as sent. Object entries
// contribute their name.
func availableSizes(v any) []string {
	items, ok := v.([]any)
	if !ok {
		if names, ok := v.([]string); ok {
			return append([]string{}, names...)
		}
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := asString(item); ok {
			out = append(out, s)
			continue
		}
		if obj, ok := asObject(item); ok {
			if name := referenceFrom(obj).Name; name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

func imageOf(r layered) string {
	if s := r.str("imageUrl", "image", "thumbnail"); s != "" {
		return s
	}
	v, ok := r.value("images")
	if !ok {
		return ""
	}
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return ""
	}
	if s, ok := asString(list[0]); ok {
		return s
	}
	if obj, ok := asObject(list[0]); ok {
		return layered{obj}.str("url", "src")
	}
	return ""
}

func pageItems(raw RawPage) (RawRecord, []RawRecord, bool) {
	if raw == nil {
		return nil, nil, false
	}
	if success, ok := raw["success"].(bool); !ok || !success {
		return nil, nil, false
	}
	data, ok := asObject(raw["data"])
	if !ok {
		return nil, nil, false
	}
	rawItems, ok := data["items"].([]any)
	if !ok {
		return nil, nil, false
	}
	items := make([]RawRecord, 0, len(rawItems))
	for _, item := range rawItems {
		if obj, ok := asObject(item); ok {
			items = append(items, obj)
		}
	}
	return data, items, true
}

type pageInfo struct {
	Total, Page, Limit, TotalPages int
}

// pageMeta copies the backend's pagination numbers unchanged. Only missing
// fields are filled in: total from the item count, page as 1, limit from the
// item count, totalPages derived from total and limit.
func pageMeta(data RawRecord, count int) pageInfo {
	r := layered{data}
	info := pageInfo{}
	var ok bool
	if info.Total, ok = r.int("total"); !ok {
		info.Total = count
	}
	if info.Page, ok = r.int("page"); !ok {
		info.Page = pagination.NormalizePage(0)
	}
	if info.Limit, ok = r.int("limit"); !ok {
		info.Limit = count
	}
	if info.TotalPages, ok = r.int("totalPages"); !ok {
		info.TotalPages = pagination.TotalPages(info.Total, info.Limit)
	}
	return info
}
