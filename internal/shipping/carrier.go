package shipping

import (
	"net/url"
	"strings"
)

const (
	CarrierGIG   = "gig"
	CarrierDHL   = "dhl"
	CarrierUPS   = "ups"
	CarrierFedEx = "fedex"
	CarrierOther = "other"
)

// NormalizeCarrier returns a canonical key for known carriers.
func NormalizeCarrier(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(normalized)

	switch normalized {
	case "gig", "giglogistics", "gigl":
		return CarrierGIG
	case "dhl", "dhlexpress":
		return CarrierDHL
	case "ups", "unitedparcelservice":
		return CarrierUPS
	case "fedex", "federalexpress":
		return CarrierFedEx
	case "other":
		return CarrierOther
	default:
		return ""
	}
}

// CarrierDisplayName keeps custom carriers untouched and normalizes known ones.
func CarrierDisplayName(carrier string) string {
	trimmed := strings.TrimSpace(carrier)
	switch NormalizeCarrier(trimmed) {
	case CarrierGIG:
		return "GIG Logistics"
	case CarrierDHL:
		return "DHL"
	case CarrierUPS:
		return "UPS"
	case CarrierFedEx:
		return "FedEx"
	default:
		return trimmed
	}
}

// TrackingURL returns a carrier tracking page. Unknown carriers return "".
func TrackingURL(carrier, trackingNumber string) string {
	number := strings.TrimSpace(trackingNumber)
	if number == "" {
		return ""
	}

	escaped := url.QueryEscape(number)
	switch NormalizeCarrier(carrier) {
	case CarrierGIG:
		return "https://giglogistics.com/track?waybill=" + escaped
	case CarrierDHL:
		return "https://www.dhl.com/ng-en/home/tracking.html?tracking-id=" + escaped
	case CarrierUPS:
		return "https://www.ups.com/track?tracknum=" + escaped
	case CarrierFedEx:
		return "https://www.fedex.com/fedextrack/?trknbr=" + escaped
	default:
		return ""
	}
}
