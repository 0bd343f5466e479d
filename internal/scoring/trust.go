package scoring

import (
	"net/url"
	"strings"

	"github.com/davidahmann/geogate/pkg/types"
)

// Trust returns the credibility weight of one evidence item. Internal documents
// get the doc tier; web references are tiered by host. References that do not
// parse to a host fall to the lowest tier.
func (m Model) Trust(ev types.Evidence) float64 {
	if ev.Kind == types.EvidenceDoc {
		return m.Tiers.Doc
	}

	host := hostOf(ev.Ref)
	if host == "" {
		return m.Tiers.Web
	}
	if strings.HasSuffix(host, ".gov") || containsAny(host, m.Tiers.RegulatorHosts) {
		return m.Tiers.Gov
	}
	if strings.HasSuffix(host, ".edu") {
		return m.Tiers.Edu
	}
	if containsAny(host, m.Tiers.NewsTokens) {
		return m.Tiers.News
	}
	return m.Tiers.Web
}

func hostOf(ref string) string {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func containsAny(host string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(host, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
