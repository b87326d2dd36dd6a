package pricing

import "fmt"

// Size is a garment size.
type Size string

const (
	SizeS  Size = "S"
	SizeM  Size = "M"
	SizeL  Size = "L"
	SizeXL Size = "XL"
)

// Sizes lists the supported sizes in display order.
var Sizes = []Size{SizeS, SizeM, SizeL, SizeXL}

// Bucket is the coverage tier a print area is rounded up into.
type Bucket int

const (
	BucketQuarter Bucket = iota
	BucketHalf
	BucketThreeQuarter
	BucketFull
)

// Buckets lists all coverage tiers from smallest to largest.
var Buckets = []Bucket{BucketQuarter, BucketHalf, BucketThreeQuarter, BucketFull}

func (b Bucket) String() string {
	switch b {
	case BucketQuarter:
		return "1/4"
	case BucketHalf:
		return "1/2"
	case BucketThreeQuarter:
		return "3/4"
	case BucketFull:
		return "Full"
	default:
		return fmt.Sprintf("Bucket(%d)", int(b))
	}
}

// ParseBucket is the inverse of Bucket.String.
func ParseBucket(s string) (Bucket, error) {
	for _, b := range Buckets {
		if b.String() == s {
			return b, nil
		}
	}
	return 0, fmt.Errorf("unknown coverage bucket %q", s)
}

// bucketFor maps a coverage ratio to its tier. Upper thresholds are inclusive.
func bucketFor(ratio float64) Bucket {
	switch {
	case ratio <= 0.25:
		return BucketQuarter
	case ratio <= 0.50:
		return BucketHalf
	case ratio <= 0.75:
		return BucketThreeQuarter
	default:
		return BucketFull
	}
}

// Rates holds the business data the calculator prices against.
type Rates struct {
	// BaseCosts is the garment cost keyed by material (fabric GSM).
	BaseCosts map[string]float64

	FlatAddon        float64 // AI text, upload or draw; once per garment
	LibraryAccess    float64 // per library design placement
	EmbroideryText   float64
	EmbroideryDesign float64

	// CanvasWidth and CanvasHeight are the pixel dimensions of the printable
	// rectangle the UI reports placements in.
	CanvasWidth  float64
	CanvasHeight float64

	// MaxPrintArea is the printable area in square inches per size.
	MaxPrintArea map[Size]float64
	PrintPrices  map[Size]map[Bucket]float64
}

// CanvasArea returns the canonical printable pixel area.
func (r Rates) CanvasArea() float64 {
	return r.CanvasWidth * r.CanvasHeight
}

// DefaultRates returns the stock price list.
func DefaultRates() Rates {
	return Rates{
		BaseCosts: map[string]float64{
			"180": 399.00,
			"240": 599.00,
		},
		FlatAddon:        50.00,
		LibraryAccess:    20.00,
		EmbroideryText:   80.00,
		EmbroideryDesign: 50.00,
		CanvasWidth:      330,
		CanvasHeight:     488,
		MaxPrintArea: map[Size]float64{
			SizeS:  448.5,
			SizeM:  480.0,
			SizeL:  525.0,
			SizeXL: 572.0,
		},
		PrintPrices: map[Size]map[Bucket]float64{
			SizeS:  {BucketQuarter: 56.06, BucketHalf: 112.13, BucketThreeQuarter: 168.19, BucketFull: 224.25},
			SizeM:  {BucketQuarter: 60.00, BucketHalf: 120.00, BucketThreeQuarter: 180.00, BucketFull: 240.00},
			SizeL:  {BucketQuarter: 65.63, BucketHalf: 131.25, BucketThreeQuarter: 196.88, BucketFull: 262.50},
			SizeXL: {BucketQuarter: 71.50, BucketHalf: 143.00, BucketThreeQuarter: 214.50, BucketFull: 286.00},
		},
	}
}
