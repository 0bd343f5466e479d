package review

import "github.com/davidahmann/geogate/pkg/types"

// validateCitations keeps draft citations that name a real evidence ref. When
// none survive it backfills from the evidence itself, so the result is empty
// only when there is no evidence at all.
func validateCitations(draft []string, evidence []types.Evidence, limit int) (out []string, backfilled bool) {
	valid := make(map[string]struct{}, len(evidence))
	for _, ev := range evidence {
		valid[ev.Ref] = struct{}{}
	}

	out = []string{}
	for _, c := range draft {
		if _, ok := valid[c]; ok {
			out = append(out, c)
		}
	}
	if len(out) > 0 {
		return out, false
	}
	return collectCitations(evidence, limit), true
}

func collectCitations(evidence []types.Evidence, limit int) []string {
	type key struct {
		kind types.EvidenceKind
		ref  string
	}
	out := []string{}
	seen := map[key]struct{}{}
	for _, ev := range evidence {
		if limit > 0 && len(out) >= limit {
			break
		}
		k := key{ev.Kind, ev.Ref}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, ev.Ref)
	}
	return out
}
