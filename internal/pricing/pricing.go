package pricing

import (
	"fmt"
	"math"
)

// Rect is a placement rectangle in canvas pixel coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Element is one independently placed design of a multi-design customization.
type Element struct {
	DesignID  string   `json:"designId,omitempty"`
	Name      string   `json:"name,omitempty"`
	Source    string   `json:"src,omitempty"`
	Price     *float64 `json:"price,omitempty"`
	Placement Rect     `json:"position"`
}

// Customization describes what is applied to one side of the garment.
type Customization struct {
	Kind      Kind      `json:"type"`
	Placement *Rect     `json:"position,omitempty"`
	Elements  []Element `json:"elements,omitempty"`

	// Descriptive fields carried for the order; they do not affect the price.
	Source   string `json:"src,omitempty"`
	DesignID string `json:"designId,omitempty"`
	Text     string `json:"text,omitempty"`
	Font     string `json:"font,omitempty"`
	Color    string `json:"color,omitempty"`
}

// Configuration is the garment being priced.
type Configuration struct {
	Size        Size           `json:"size"`
	MaterialKey string         `json:"thickness"`
	Front       *Customization `json:"frontCustomization,omitempty"`
	Back        *Customization `json:"backCustomization,omitempty"`
}

// Side names a printable side of the garment.
type Side string

const (
	SideFront Side = "Front"
	SideBack  Side = "Back"
)

// Breakdown contains every priced component of one garment.
type Breakdown struct {
	BaseCost        float64 `json:"base_cost"`
	FlatAddon       float64 `json:"flat_addon"`
	LibraryAccess   float64 `json:"library_access"`
	EmbroideryFront float64 `json:"embroidery_front"`
	EmbroideryBack  float64 `json:"embroidery_back"`
	PrintFront      float64 `json:"print_front"`
	PrintBack       float64 `json:"print_back"`
}

// Sum adds all breakdown fields.
func (b Breakdown) Sum() float64 {
	return b.BaseCost + b.FlatAddon + b.LibraryAccess +
		b.EmbroideryFront + b.EmbroideryBack +
		b.PrintFront + b.PrintBack
}

// Result groups the unit price with its breakdown and non-fatal errors.
type Result struct {
	UnitPrice float64
	Breakdown Breakdown
	Errors    []string

	// BaseInvalid marks a configuration whose base cost could not be
	// determined. UnitPrice is zero in that case.
	BaseInvalid bool
}

// Priced reports whether a unit price could be determined.
func (r Result) Priced() bool {
	return !r.BaseInvalid
}

// Display renders the breakdown with two decimals for presentation.
func (r Result) Display() map[string]string {
	if r.BaseInvalid {
		return map[string]string{"baseGSM": "Error"}
	}
	b := r.Breakdown
	return map[string]string{
		"baseGSM":         formatMoney(b.BaseCost),
		"flatAddon":       formatMoney(b.FlatAddon),
		"libraryAccess":   formatMoney(b.LibraryAccess),
		"printFront":      formatMoney(b.PrintFront),
		"printBack":       formatMoney(b.PrintBack),
		"embroideryFront": formatMoney(b.EmbroideryFront),
		"embroideryBack":  formatMoney(b.EmbroideryBack),
	}
}

// Calculate prices a garment configuration against the given rates.
// It never mutates cfg and holds no state between calls.
func Calculate(cfg Configuration, rates Rates) Result {
	base, ok := rates.BaseCosts[cfg.MaterialKey]
	if !ok || cfg.MaterialKey == "" {
		return Result{
			BaseInvalid: true,
			Errors:      []string{fmt.Sprintf("Item thickness (GSM) '%s' is invalid or not set for base cost.", cfg.MaterialKey)},
		}
	}

	c := calculation{
		cfg:    cfg,
		rates:  rates,
		errors: []string{},
	}
	c.breakdown.BaseCost = base

	c.side(SideFront, cfg.Front)
	c.side(SideBack, cfg.Back)

	return Result{
		UnitPrice: round2(c.breakdown.Sum()),
		Breakdown: c.breakdown,
		Errors:    c.errors,
	}
}

type calculation struct {
	cfg       Configuration
	rates     Rates
	breakdown Breakdown
	errors    []string

	flatAddonApplied bool
}

func (c *calculation) errorf(format string, args ...any) {
	c.errors = append(c.errors, fmt.Sprintf(format, args...))
}

func (c *calculation) side(side Side, cust *Customization) {
	if cust == nil {
		return
	}

	switch cust.Kind {
	case KindAITextImage, KindUploadedImage, KindAIDrawImage:
		if !c.flatAddonApplied {
			c.breakdown.FlatAddon += c.rates.FlatAddon
			c.flatAddonApplied = true
		}
	case KindLibraryDesign:
		c.breakdown.LibraryAccess += c.rates.LibraryAccess
	case KindMultiLibraryDesign:
		for _, el := range cust.Elements {
			c.breakdown.LibraryAccess += c.elementPrice(el)
		}
	case KindEmbroideryText:
		c.addEmbroidery(side, c.rates.EmbroideryText)
	case KindEmbroideryDesign:
		c.addEmbroidery(side, c.rates.EmbroideryDesign)
	case KindOther:
		return
	}

	if cust.Kind.scalablePrint() {
		c.addPrint(side, c.printCost(side, cust))
	}
}

func (c *calculation) elementPrice(el Element) float64 {
	if el.Price != nil && *el.Price > 0 && !math.IsInf(*el.Price, 0) {
		return *el.Price
	}
	return c.rates.LibraryAccess
}

func (c *calculation) addEmbroidery(side Side, cost float64) {
	if side == SideFront {
		c.breakdown.EmbroideryFront += cost
	} else {
		c.breakdown.EmbroideryBack += cost
	}
}

func (c *calculation) addPrint(side Side, cost float64) {
	if side == SideFront {
		c.breakdown.PrintFront += cost
	} else {
		c.breakdown.PrintBack += cost
	}
}

// printCost returns the scaled print surcharge of one side, or zero with an
// error recorded when it cannot be determined.
func (c *calculation) printCost(side Side, cust *Customization) float64 {
	p := cust.Placement
	if p == nil || !(p.Width > 0) || !(p.Height > 0) {
		c.errorf("%s printing type '%s' requires valid position data (width/height). Area cost not applied.", side, cust.Kind.Label())
		return 0
	}

	size := c.cfg.Size
	maxArea, ok := c.rates.MaxPrintArea[size]
	if !ok {
		c.errorf("Invalid T-shirt size ('%s') for %s area print cost.", size, side)
		return 0
	}
	if maxArea <= 0 {
		c.errorf("Max print area for size '%s' invalid.", size)
		return 0
	}

	canvasArea := c.rates.CanvasArea()
	if canvasArea <= 0 {
		c.errorf("Pixel to Sq.Inch factor invalid.")
		return 0
	}
	factor := canvasArea / maxArea

	pixels := p.Width * p.Height
	actual := math.Min(pixels/factor, maxArea)
	if actual <= 0 {
		return 0
	}

	// The ratio is taken in pixel space so that exact fractions of the canvas
	// land on the bucket boundaries without drift through the factor.
	ratio := math.Min(pixels/canvasArea, 1)
	bucket := bucketFor(ratio)

	price, ok := c.rates.PrintPrices[size][bucket]
	if !ok {
		c.errorf("No print cost found for %s: size '%s', fraction '%s'.", side, size, bucket)
		return 0
	}
	return price
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatMoney(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
