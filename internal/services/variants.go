package services

import (
	"sort"
	"strings"

	"github.com/hanko-field/teamwear/internal/domain"
	"github.com/hanko-field/teamwear/internal/platform/textutil"
)

// NoColorAxis is returned by DetectColorAxis when no option slot qualifies.
const NoColorAxis = -1

// DefaultSizes is offered when a product exposes no size axis.
var DefaultSizes = []string{"XS", "S", "M", "L", "XL", "XXL"}

// SizeVocabulary recognises size keywords and orders them.
type SizeVocabulary struct {
	ranks map[string]int
}

// NewSizeVocabulary builds a vocabulary from sizes in ascending order. Aliases map
// an alternative spelling onto one of the sizes (e.g. "2xl" onto "xxl").
func NewSizeVocabulary(sizes []string, aliases map[string]string) SizeVocabulary {
	ranks := make(map[string]int, len(sizes)+len(aliases))
	for i, size := range sizes {
		key := textutil.NormalizeKey(size)
		if key == "" {
			continue
		}
		if _, exists := ranks[key]; !exists {
			ranks[key] = i
		}
	}
	for alias, target := range aliases {
		if rank, ok := ranks[textutil.NormalizeKey(target)]; ok {
			ranks[textutil.NormalizeKey(alias)] = rank
		}
	}
	return SizeVocabulary{ranks: ranks}
}

// DefaultSizeVocabulary covers xs through xxxl plus the 2xl/3xl spellings.
func DefaultSizeVocabulary() SizeVocabulary {
	return NewSizeVocabulary(
		[]string{"xs", "s", "m", "l", "xl", "xxl", "xxxl"},
		map[string]string{"2xl": "xxl", "3xl": "xxxl"},
	)
}

// IsSize reports whether value is a size keyword.
func (v SizeVocabulary) IsSize(value string) bool {
	_, ok := v.ranks[textutil.NormalizeKey(value)]
	return ok
}

func (v SizeVocabulary) rank(value string) (int, bool) {
	r, ok := v.ranks[textutil.NormalizeKey(value)]
	return r, ok
}

// axisValues returns the distinct non-empty values of one option slot in first-seen
// order, keyed by their normalised form.
func axisValues(variants []domain.Variant, slot int) (keys []string, display map[string]string) {
	display = make(map[string]string)
	for _, variant := range variants {
		raw := variant.Options()[slot]
		key := textutil.NormalizeKey(raw)
		if key == "" {
			continue
		}
		if _, seen := display[key]; seen {
			continue
		}
		display[key] = textutil.CleanDisplay(raw)
		keys = append(keys, key)
	}
	return keys, display
}

func allSizes(keys []string, vocab SizeVocabulary) bool {
	for _, key := range keys {
		if !vocab.IsSize(key) {
			return false
		}
	}
	return true
}

// DetectColorAxis picks the option slot holding colours: the first slot whose values
// are not all size keywords and that has more than one distinct value. Single-colour
// products fall back to the first such slot with one value.
func DetectColorAxis(variants []domain.Variant, vocab SizeVocabulary) int {
	fallback := NoColorAxis
	for slot := 0; slot < 3; slot++ {
		keys, _ := axisValues(variants, slot)
		if len(keys) == 0 || allSizes(keys, vocab) {
			continue
		}
		if len(keys) > 1 {
			return slot
		}
		if fallback == NoColorAxis {
			fallback = slot
		}
	}
	return fallback
}

// ColorResolution is the outcome of grouping a product's variants by colour.
type ColorResolution struct {
	Axis   int
	Colors []domain.Color
	OK     bool
}

// ExtractColors groups variants into distinct colours. Names are compared after case
// folding and whitespace collapsing; the first variant seen for a colour becomes its
// representative. Swatches are looked up by normalised name and default to the name.
func ExtractColors(product domain.Product, vocab SizeVocabulary, swatches map[string]string) ColorResolution {
	axis := DetectColorAxis(product.Variants, vocab)
	if axis == NoColorAxis {
		return ColorResolution{Axis: NoColorAxis}
	}

	normalizedSwatches := make(map[string]string, len(swatches))
	for name, value := range swatches {
		normalizedSwatches[textutil.NormalizeKey(name)] = strings.TrimSpace(value)
	}

	seen := make(map[string]struct{})
	colors := make([]domain.Color, 0, len(product.Variants))
	for _, variant := range product.Variants {
		if variant.ID == "" {
			continue
		}
		raw := variant.Options()[axis]
		key := textutil.NormalizeKey(raw)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		swatch := normalizedSwatches[key]
		if swatch == "" {
			swatch = key
		}
		colors = append(colors, domain.Color{
			Name:           textutil.CleanDisplay(raw),
			Key:            key,
			Swatch:         swatch,
			VariantID:      variant.ID,
			Representative: variant,
		})
	}
	return ColorResolution{Axis: axis, Colors: colors, OK: len(colors) > 0}
}

// FindColor returns the colour whose normalised name matches name.
func (r ColorResolution) FindColor(name string) (domain.Color, bool) {
	key := textutil.NormalizeKey(name)
	if key == "" {
		return domain.Color{}, false
	}
	for _, color := range r.Colors {
		if color.Key == key {
			return color, true
		}
	}
	return domain.Color{}, false
}

// ResolveVariant finds the live variant carrying the colour in any option slot,
// falling back to the colour's captured representative.
func ResolveVariant(color domain.Color, variants []domain.Variant) (domain.Variant, bool) {
	key := color.Key
	if key == "" {
		key = textutil.NormalizeKey(color.Name)
	}
	if key != "" {
		for _, variant := range variants {
			if variant.ID == "" {
				continue
			}
			for _, option := range variant.Options() {
				if textutil.NormalizeKey(option) == key {
					return variant, true
				}
			}
		}
	}
	if color.Representative.ID != "" {
		return color.Representative, true
	}
	return domain.Variant{}, false
}

// FindPreviewImage picks the image shown for a variant: its attached image, the
// image its reference points to, an image listing the variant, an image whose alt
// text names the colour, and finally the first product image.
func FindPreviewImage(variant domain.Variant, colorName string, images []domain.Image) (domain.Image, bool) {
	if variant.FeaturedImage != nil && variant.FeaturedImage.Src != "" {
		return *variant.FeaturedImage, true
	}
	if variant.ImageID != "" {
		for _, img := range images {
			if img.ID == variant.ImageID && img.Src != "" {
				return img, true
			}
		}
	}
	if variant.ID != "" {
		for _, img := range images {
			for _, id := range img.VariantIDs {
				if id == variant.ID && img.Src != "" {
					return img, true
				}
			}
		}
	}
	if key := textutil.NormalizeKey(colorName); key != "" {
		for _, img := range images {
			alt := textutil.NormalizeKey(img.Alt)
			if alt != "" && img.Src != "" && (alt == key || strings.Contains(alt, key)) {
				return img, true
			}
		}
	}
	for _, img := range images {
		if img.Src != "" {
			return img, true
		}
	}
	return domain.Image{}, false
}

// SizeOptions lists the sizes offered for the product, taken from the first
// non-colour slot (preferring one made of size keywords). Known sizes are ordered
// XS < … < XXXL, unknown ones follow lexicographically.
func SizeOptions(product domain.Product, colorAxis int, vocab SizeVocabulary) []string {
	slot := -1
	for candidate := 0; candidate < 3; candidate++ {
		if candidate == colorAxis {
			continue
		}
		keys, _ := axisValues(product.Variants, candidate)
		if len(keys) == 0 {
			continue
		}
		if allSizes(keys, vocab) {
			slot = candidate
			break
		}
		if slot == -1 {
			slot = candidate
		}
	}
	if slot == -1 {
		return append([]string(nil), DefaultSizes...)
	}

	keys, display := axisValues(product.Variants, slot)
	sort.SliceStable(keys, func(i, j int) bool {
		ri, iKnown := vocab.rank(keys[i])
		rj, jKnown := vocab.rank(keys[j])
		switch {
		case iKnown && jKnown:
			if ri != rj {
				return ri < rj
			}
			return keys[i] < keys[j]
		case iKnown:
			return true
		case jKnown:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
	sizes := make([]string, 0, len(keys))
	for _, key := range keys {
		sizes = append(sizes, display[key])
	}
	return sizes
}

// ContainsSize reports whether value names one of sizes, ignoring case and spacing.
func ContainsSize(sizes []string, value string) bool {
	key := textutil.NormalizeKey(value)
	if key == "" {
		return false
	}
	for _, size := range sizes {
		if textutil.NormalizeKey(size) == key {
			return true
		}
	}
	return false
}
