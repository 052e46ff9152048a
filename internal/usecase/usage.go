package usecase

import (
	"sort"
	"strings"

	"qlmodel/internal/domain"
)

// AggregateUsages groups decoded (signature, supported, call) tuples into
// per-API usage records. The first occurrence of a signature establishes
// the record and its supported flag; every occurrence appends its call
// site in encounter order. The result is sorted by usage count descending
// with ties keeping first-seen order.
func AggregateUsages(tuples [][]domain.Value) []domain.ExternalAPIUsage {
	bySignature := make(map[string]*domain.ExternalAPIUsage)
	var order []*domain.ExternalAPIUsage

	for _, tuple := range tuples {
		if len(tuple) < 3 {
			continue
		}
		signature := tuple[0].Str
		supported := tuple[1].Bool
		call := domain.Call{
			Label:    tuple[2].Entity.Label,
			Location: tuple[2].Entity.Location,
		}

		usage, ok := bySignature[signature]
		if !ok {
			pkg, typ, method, params := ParseSignature(signature)
			usage = &domain.ExternalAPIUsage{
				Signature:        signature,
				PackageName:      pkg,
				TypeName:         typ,
				MethodName:       method,
				MethodParameters: params,
				Supported:        supported,
			}
			bySignature[signature] = usage
			order = append(order, usage)
		}
		usage.Usages = append(usage.Usages, call)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return len(order[i].Usages) > len(order[j].Usages)
	})

	result := make([]domain.ExternalAPIUsage, len(order))
	for i, u := range order {
		result[i] = *u
	}
	return result
}

// ParseSignature splits "package.Type#method(params)" into its parts: the
// package is everything before the last dot preceding '#', the type is
// the remainder up to '#', the method name runs to the first '(', and the
// parameters are from that '(' onward, inclusive. Missing separators
// leave the affected parts empty rather than failing.
func ParseSignature(signature string) (pkg, typ, method, params string) {
	hash := strings.Index(signature, "#")
	if hash < 0 {
		return "", "", signature, ""
	}

	qualifier := signature[:hash]
	if dot := strings.LastIndex(qualifier, "."); dot >= 0 {
		pkg = qualifier[:dot]
		typ = qualifier[dot+1:]
	} else {
		typ = qualifier
	}

	rest := signature[hash+1:]
	if paren := strings.Index(rest, "("); paren >= 0 {
		method = rest[:paren]
		params = rest[paren:]
	} else {
		method = rest
	}
	return pkg, typ, method, params
}

// SupportedPercentage returns the share of usages already supported, in
// percent. Zero usages yields zero, never a division by zero.
func SupportedPercentage(usages []domain.ExternalAPIUsage) float64 {
	if len(usages) == 0 {
		return 0
	}
	supported := 0
	for _, u := range usages {
		if u.Supported {
			supported++
		}
	}
	return float64(supported) / float64(len(usages)) * 100
}
