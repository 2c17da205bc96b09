// Package mailmeta performs header forensics: sender-domain normalization,
// ESP fingerprinting, authentication verdicts, and per-domain send-cadence
// rollups.
package mailmeta

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// NormalizeSender splits an address into the organizational root domain and
// the raw host. "news@mail.campaigns.acme.co.uk" yields root "acme.co.uk"
// and subdomain "mail.campaigns.acme.co.uk". Downstream joins always use
// the root so subdomain-spread campaigns collapse onto one sender.
func NormalizeSender(address string) (root, subdomain string) {
	at := strings.LastIndexByte(address, '@')
	if at < 0 || at == len(address)-1 {
		return "", ""
	}
	host := strings.ToLower(strings.Trim(address[at+1:], ">. "))
	if host == "" {
		return "", ""
	}

	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// Bare TLDs, IPs, and internal hostnames fall back to the host
		// itself.
		return host, host
	}
	return etld1, host
}
