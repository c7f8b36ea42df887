// Package i18n holds the storefront copy shown by the configurator.
package i18n

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

//go:embed locales/de.json
var germanCopy []byte

// Message keys used across the configurator.
const (
	KeySelectDesign           = "selectDesign"
	KeySelectColor            = "selectColor"
	KeySelectQuantity         = "selectQuantity"
	KeyCorrectSizes           = "correctSizes"
	KeyCorrectPersonalization = "correctPersonalization"
	KeyTooManyProperties      = "tooManyProperties"
	KeyAddingToCart           = "addingToCart"
	KeyAddedToCart            = "addedToCart"
	KeySubmitInProgress       = "submitInProgress"
	KeyError                  = "error"
	KeyNotFound               = "notFound"
	KeyInvalidConfiguration   = "invalidConfiguration"
	KeyNetworkError           = "networkError"
	KeyProductLoadFailed      = "productLoadFailed"
	KeyColorsUnavailable      = "colorsUnavailable"
	KeyDiscount               = "discount"
	KeyNoDiscount             = "noDiscount"
	KeyBasePrice              = "basePrice"
	KeyPerPiece               = "perPiece"
	KeyPriceDetails           = "priceDetails"
	KeyPriceDetailsDiscount   = "priceDetailsDiscount"
	KeyUnknownDesign          = "unknownDesign"

	KeyPropertyDesign              = "property.design"
	KeyPropertyColor               = "property.color"
	KeyPropertyQuantity            = "property.quantity"
	KeyPropertyBasePrice           = "property.basePrice"
	KeyPropertyDiscount            = "property.discount"
	KeyPropertyUnitPrice           = "property.unitPrice"
	KeyPropertyUnitPriceWithExtras = "property.unitPriceWithExtras"
	KeyPropertyExtra               = "property.extra"
	KeyPropertyExtraValue          = "property.extraValue"
	KeyPropertyTeamLogo            = "property.teamLogo"
	KeyPropertyTeamLogoFile        = "property.teamLogoFile"
	KeyPropertyTeamName            = "property.teamName"
	KeyPropertySize                = "property.size"
	KeyPropertyRow                 = "property.row"
)

// AddOnKey returns the label key of an add-on.
func AddOnKey(addOn string) string {
	return "addOn." + addOn
}

// Bundle resolves message keys to German copy, letting shop-supplied translations
// replace individual entries.
type Bundle struct {
	tag  language.Tag
	dict map[string]string
}

// Load builds the bundle from the embedded German copy and applies overrides.
// Blank override values are ignored.
func Load(overrides map[string]string) (*Bundle, error) {
	dict := map[string]string{}
	if err := json.Unmarshal(germanCopy, &dict); err != nil {
		return nil, fmt.Errorf("unmarshal de: %w", err)
	}
	for key, value := range overrides {
		key = strings.TrimSpace(key)
		if key == "" || strings.TrimSpace(value) == "" {
			continue
		}
		dict[key] = value
	}
	return &Bundle{tag: language.German, dict: dict}, nil
}

// MustLoad is Load for the embedded copy without overrides; it panics only if the
// embedded file is broken.
func MustLoad() *Bundle {
	b, err := Load(nil)
	if err != nil {
		panic(err)
	}
	return b
}

// Language returns the BCP 47 tag of the copy.
func (b *Bundle) Language() language.Tag { return b.tag }

// T returns the message for key, or the key itself when unknown.
func (b *Bundle) T(key string) string {
	if b == nil {
		return key
	}
	if v, ok := b.dict[key]; ok {
		return v
	}
	return key
}

// F formats the message for key with args.
func (b *Bundle) F(key string, args ...any) string {
	return fmt.Sprintf(b.T(key), args...)
}

// Keys lists the known message keys in sorted order.
func (b *Bundle) Keys() []string {
	out := make([]string, 0, len(b.dict))
	for k := range b.dict {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
