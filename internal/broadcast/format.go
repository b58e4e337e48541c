package broadcast

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joao-fontenele/storefront-core/internal/domain"
)

var pricePrinter = message.NewPrinter(language.English)

// FormatPrice groups thousands with spaces, e.g. 25000 becomes "25 000".
func FormatPrice(amount int64) string {
	return strings.ReplaceAll(pricePrinter.Sprintf("%d", amount), ",", " ")
}

// Expand replaces {name} placeholders in text with formatted prices.
func Expand(text string, prices map[string]int64) string {
	if len(prices) == 0 {
		return text
	}
	pairs := make([]string, 0, 2*len(prices))
	for name, amount := range prices {
		pairs = append(pairs, "{"+name+"}", FormatPrice(amount))
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// PolicyPrices names the policy amounts a broadcast text may reference.
func PolicyPrices(p domain.PricingPolicy) map[string]int64 {
	return map[string]int64{
		"free_delivery_threshold": p.FreeDeliveryThreshold,
		"delivery_fee":            p.DeliveryFee,
		"vip_threshold":           p.VIPThreshold,
	}
}
