package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hanko-field/teamwear/internal/platform/money"
)

// ID is an identifier issued by the commerce platform. The AJAX API sends ids as
// JSON numbers while page data attributes carry them as strings, so both decode.
type ID string

// UnmarshalJSON accepts numbers, strings and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("domain: invalid id %s: %w", string(data), err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the raw identifier.
func (id ID) String() string { return string(id) }

// Int64 parses the identifier as a positive integer.
func (id ID) Int64() (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(string(id)), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// ErrAmountOutOfRange is returned for amounts that do not fit in int64 minor units.
var ErrAmountOutOfRange = errors.New("domain: amount out of range")

// Minor is an amount in minor currency units. JSON numbers are read as minor units
// (the AJAX API's convention); JSON strings are read as major-unit decimals.
type Minor int64

// UnmarshalJSON accepts integer minor units or decimal major-unit strings.
func (m *Minor) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := money.ParseMajor(s)
		if err != nil {
			return err
		}
		*m = Minor(v)
		return nil
	}
	if n, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		*m = Minor(n)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("domain: invalid amount %s: %w", string(data), err)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	r := math.Round(f)
	if r >= math.MaxInt64 || r < math.MinInt64 {
		return fmt.Errorf("%w: %s", ErrAmountOutOfRange, string(data))
	}
	*m = Minor(r)
	return nil
}

// Product is the payload of the product lookup endpoint.
type Product struct {
	ID       ID           `json:"id"`
	Handle   string       `json:"handle"`
	Title    string       `json:"title"`
	Options  []OptionName `json:"options"`
	Variants []Variant    `json:"variants"`
	Images   []Image      `json:"images"`
}

// OptionName is the name of one option axis. The .js endpoint lists names as
// strings, the .json endpoint as objects.
type OptionName string

// UnmarshalJSON accepts "Farbe" and {"name":"Farbe"}.
func (o *OptionName) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*o = OptionName(obj.Name)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = OptionName(s)
	return nil
}

// Variant is one purchasable SKU of a product.
type Variant struct {
	ID            ID     `json:"id"`
	Title         string `json:"title"`
	Price         Minor  `json:"price"`
	Option1       string `json:"option1"`
	Option2       string `json:"option2"`
	Option3       string `json:"option3"`
	ImageID       ID     `json:"image_id"`
	FeaturedImage *Image `json:"featured_image"`
	Available     *bool  `json:"available,omitempty"`
}

// Options returns the three option slots in order.
func (v Variant) Options() [3]string {
	return [3]string{v.Option1, v.Option2, v.Option3}
}

// Image is a product image. Image lists on the .js endpoint are bare URLs.
type Image struct {
	ID         ID     `json:"id"`
	Src        string `json:"src"`
	Alt        string `json:"alt"`
	VariantIDs []ID   `json:"variant_ids"`
}

// UnmarshalJSON accepts bare URL strings as well as image objects.
func (img *Image) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var src string
		if err := json.Unmarshal(data, &src); err != nil {
			return err
		}
		*img = Image{Src: src}
		return nil
	}
	type plain Image
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*img = Image(p)
	return nil
}

// Color is one purchasable colour of a design, backed by a representative variant.
type Color struct {
	Name           string  `json:"name"`
	Key            string  `json:"key"`
	Swatch         string  `json:"swatch"`
	VariantID      ID      `json:"variantId"`
	Representative Variant `json:"-"`
}

// AddOn names an optional per-unit extra.
type AddOn string

const (
	AddOnTeamLogo    AddOn = "teamLogo"
	AddOnTeamName    AddOn = "teamName"
	AddOnPlayerNames AddOn = "playerNames"
	AddOnBackNumber  AddOn = "backNumber"
	AddOnFrontNumber AddOn = "frontNumber"
)

// AddOns lists every add-on in display order.
var AddOns = []AddOn{AddOnTeamLogo, AddOnTeamName, AddOnPlayerNames, AddOnBackNumber, AddOnFrontNumber}

// Valid reports whether the add-on is known.
func (a AddOn) Valid() bool {
	for _, known := range AddOns {
		if a == known {
			return true
		}
	}
	return false
}

// PersonalizationRow is the buyer-entered record for one unit of the order.
type PersonalizationRow struct {
	Ordinal int    `json:"ordinal"`
	Name    string `json:"name"`
	Number  string `json:"number"`
	Size    string `json:"size"`
}

// TeamLogo is the hosted logo returned by the upload collaborator.
type TeamLogo struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Property is one line-item property. Order is preserved on the wire because the
// platform displays properties in the order received.
type Property struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CartLine is the single line item submitted to the cart.
type CartLine struct {
	VariantID  int64
	Quantity   int
	Properties []Property
}

// PropertyMap returns the properties keyed by name.
func (l CartLine) PropertyMap() map[string]string {
	out := make(map[string]string, len(l.Properties))
	for _, p := range l.Properties {
		out[p.Name] = p.Value
	}
	return out
}

// MarshalJSON renders {"id":…,"quantity":…,"properties":{…}} keeping property order.
func (l CartLine) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"id":`)
	buf.WriteString(strconv.FormatInt(l.VariantID, 10))
	buf.WriteString(`,"quantity":`)
	buf.WriteString(strconv.Itoa(l.Quantity))
	buf.WriteString(`,"properties":{`)
	for i, p := range l.Properties {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(p.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// CartItem is a line of the shopper's cart as reported by the platform.
type CartItem struct {
	Key        string         `json:"key"`
	ID         ID             `json:"id"`
	VariantID  ID             `json:"variant_id"`
	Title      string         `json:"title"`
	Quantity   int            `json:"quantity"`
	Price      Minor          `json:"price"`
	LinePrice  Minor          `json:"line_price"`
	Properties map[string]any `json:"properties"`
}

// Cart is the shopper's current cart.
type Cart struct {
	Token      string     `json:"token"`
	ItemCount  int        `json:"item_count"`
	TotalPrice Minor      `json:"total_price"`
	Currency   string     `json:"currency"`
	Items      []CartItem `json:"items"`
}
