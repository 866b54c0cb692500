package source

import "strings"

// shopDomains are the storefronts whose pages are worth extracting images
// from. Search hits outside this list are dropped before scoring.
var shopDomains = []string{
	"shop.weverse.io",
	"kyobobook.co.kr",
	"ktown4u.com",
	"choicemusicla.com",
	"music-plaza.com",
	"kpoptown.com",
	"kpopmart.com",
	"amazon.com",
	"target.com",
	"cdjapan.co.jp",
}

// imageCDNMarkers identify image URLs hosted on shop CDNs, preferred when
// falling back to raw <img> scanning.
var imageCDNMarkers = []string{
	"weverseshop",
	"cloudfront",
	"ktown4u",
	"kyobobook",
	"kpopmart",
	"kpoptown",
	"cdn",
}

// IsShopURL reports whether the URL belongs to a known storefront.
func IsShopURL(rawURL string) bool {
	for _, d := range shopDomains {
		if strings.Contains(rawURL, d) {
			return true
		}
	}
	return false
}

// IsShopProductURL reports whether the URL is a direct product-page
// reference: a known storefront URL that is not a notice, news, or (for
// Weverse) non-product page.
func IsShopProductURL(rawURL string) bool {
	if !strings.HasPrefix(rawURL, "http") || !IsShopURL(rawURL) {
		return false
	}
	return !isNoticeOrNews(rawURL)
}

// FilterShopHits keeps only hits pointing at known storefronts, dropping
// notice/news pages and Weverse pages that are not product listings.
func FilterShopHits(hits []PageHit) []PageHit {
	var out []PageHit
	for _, h := range hits {
		if !IsShopURL(h.URL) || isNoticeOrNews(h.URL) {
			continue
		}
		if strings.Contains(h.URL, "shop.weverse.io") && !strings.Contains(h.URL, "/sales/") {
			continue
		}
		out = append(out, h)
	}
	return out
}

// IsShopCDNImage reports whether the image URL is served from a shop CDN and
// does not look like a logo, icon, or page chrome.
func IsShopCDNImage(imgURL string) bool {
	lower := strings.ToLower(imgURL)
	onCDN := false
	for _, m := range imageCDNMarkers {
		if strings.Contains(lower, m) {
			onCDN = true
			break
		}
	}
	if !onCDN {
		return false
	}
	for _, bad := range []string{"logo", "icon", "banner"} {
		if strings.Contains(lower, bad) {
			return false
		}
	}
	return true
}

func isNoticeOrNews(rawURL string) bool {
	return strings.Contains(rawURL, "/notices/") ||
		strings.Contains(rawURL, "/notice/") ||
		strings.Contains(rawURL, "/news/")
}
