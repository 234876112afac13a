package catalog

import (
	"context"

	"github.com/angelmondragon/storefront/internal/refcache"
)

// attributeRule is the lookup order for one reference attribute:
//  1. populated object at each of objectFields, in order
//  2. an unpopulated id at any of objectFields, resolved through the cache
//  3. a legacy flat name at each of flatFields
//  4. fallback, logged
type attributeRule struct {
	attribute    string
	kind         refcache.Kind
	objectFields []string
	flatFields   []string
	fallback     string
}

var (
	sizeRule = attributeRule{
		attribute:    "size",
		kind:         refcache.KindSize,
		objectFields: []string{"size", "sizeId"},
		flatFields:   []string{"sizeName", "size"},
		fallback:     "One Size",
	}
	typeRule = attributeRule{
		attribute:    "productType",
		kind:         refcache.KindProductType,
		objectFields: []string{"productType", "type", "productTypeId"},
		flatFields:   []string{"typeName", "productTypeName", "productType", "type", "category"},
		fallback:     "Uncategorized",
	}
	referenceRules = []attributeRule{sizeRule, typeRule}
)

func referenceFrom(obj RawRecord) refcache.Reference {
	r := layered{obj}
	return refcache.Reference{ID: recordID(r), Name: r.str("name", "label")}
}

// record hands every populated reference object in r to the cache.
func (n *Normalizer) record(r RawRecord) {
	for _, rule := range referenceRules {
		for _, field := range rule.objectFields {
			if obj, ok := asObject(r[field]); ok {
				n.cache.Record(rule.kind, referenceFrom(obj))
			}
		}
	}
}

func (n *Normalizer) extract(ctx context.Context, r layered, rule attributeRule) string {
	for _, field := range rule.objectFields {
		obj, ok := r.object(field)
		if !ok {
			continue
		}
		if ref := referenceFrom(obj); ref.Name != "" {
			return ref.Name
		}
	}
	for _, field := range rule.objectFields {
		v, ok := r.value(field)
		if !ok {
			continue
		}
		id := ""
		if obj, ok := asObject(v); ok {
			id = recordID(layered{obj})
		} else if s, ok := asString(v); ok && refcache.LooksLikeID(s) {
			id = s
		}
		if id == "" {
			continue
		}
		if name, ok := n.cache.ResolveName(rule.kind, id); ok {
			return name
		}
	}
	for _, field := range rule.flatFields {
		v, ok := r.value(field)
		if !ok {
			continue
		}
		if s, ok := asString(v); ok && s != "" && !refcache.LooksLikeID(s) {
			return s
		}
	}

	logCtx := n.logg.WithFields(ctx, map[string]any{
		"record_id": recordID(r),
		"attribute": rule.attribute,
		"fallback":  rule.fallback,
	})
	n.logg.Warn(logCtx, "catalog record shape not recognized; using fallback")
	return rule.fallback
}
