package pricing

import (
	"encoding/json"
	"math"
	"reflect"
	"strings"
	"testing"
)

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func rect(w, h float64) *Rect {
	return &Rect{Width: w, Height: h}
}

func price(v float64) *float64 {
	return &v
}

func TestCalculate_NoCustomizations(t *testing.T) {
	result := Calculate(Configuration{Size: SizeM, MaterialKey: "180"}, DefaultRates())

	nearlyEqual(t, "unitPrice", result.UnitPrice, 399)
	nearlyEqual(t, "baseCost", result.Breakdown.BaseCost, 399)
	nearlyEqual(t, "rest", result.Breakdown.Sum()-result.Breakdown.BaseCost, 0)
	if len(result.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", result.Errors)
	}
	if !result.Priced() {
		t.Fatalf("expected a priced result")
	}
}

func TestCalculate_LibraryDesignFullCanvas(t *testing.T) {
	cfg := Configuration{
		Size:        SizeM,
		MaterialKey: "180",
		Front:       &Customization{Kind: KindLibraryDesign, Placement: rect(330, 488)},
	}

	result := Calculate(cfg, DefaultRates())

	nearlyEqual(t, "libraryAccess", result.Breakdown.LibraryAccess, 20)
	nearlyEqual(t, "printFront", result.Breakdown.PrintFront, 240)
	nearlyEqual(t, "unitPrice", result.UnitPrice, 659)
}

func TestCalculate_ScaledRectangleUsesPixelCoverage(t *testing.T) {
	// 264x390.4 is 80% of each canvas dimension, 64% of its area.
	cfg := Configuration{
		Size:        SizeM,
		MaterialKey: "180",
		Front:       &Customization{Kind: KindLibraryDesign, Placement: rect(264, 390.4)},
	}

	result := Calculate(cfg, DefaultRates())

	nearlyEqual(t, "printFront", result.Breakdown.PrintFront, 180)
	nearlyEqual(t, "unitPrice", result.UnitPrice, 599)
}

func TestCalculate_FlatAddonAppliedOnce(t *testing.T) {
	cfg := Configuration{
		Size:        SizeM,
		MaterialKey: "180",
		Front:       &Customization{Kind: KindAITextImage, Placement: rect(165, 244)},
		Back:        &Customization{Kind: KindUploadedImage, Placement: rect(165, 244)},
	}

	result := Calculate(cfg, DefaultRates())

	nearlyEqual(t, "flatAddon", result.Breakdown.FlatAddon, 50)
	nearlyEqual(t, "printFront", result.Breakdown.PrintFront, 60)
	nearlyEqual(t, "printBack", result.Breakdown.PrintBack, 60)
	nearlyEqual(t, "unitPrice", result.UnitPrice, 399+50+2*60)
}

func TestCalculate_CoverageBoundaries(t *testing.T) {
	// Canvas is 330x488; widths below give exact fractions of its area.
	tests := []struct {
		name  string
		width float64
		want  float64
	}{
		{"quarter exact", 82.5, 60},
		{"just over quarter", 83, 120},
		{"half exact", 165, 120},
		{"three quarter exact", 247.5, 180},
		{"just over three quarter", 248, 240},
		{"full", 330, 240},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Configuration{
				Size:        SizeM,
				MaterialKey: "180",
				Front:       &Customization{Kind: KindAIDrawImage, Placement: rect(tt.width, 488)},
			}
			result := Calculate(cfg, DefaultRates())
			nearlyEqual(t, "printFront", result.Breakdown.PrintFront, tt.want)
		})
	}
}

func TestCalculate_BoundariesHoldForEverySize(t *testing.T) {
	rates := DefaultRates()
	for _, size := range Sizes {
		cfg := Configuration{
			Size:        size,
			MaterialKey: "240",
			Front:       &Customization{Kind: KindUploadedImage, Placement: rect(165, 244)},
		}
		result := Calculate(cfg, rates)
		nearlyEqual(t, string(size)+" printFront", result.Breakdown.PrintFront, rates.PrintPrices[size][BucketQuarter])
	}
}

func TestCalculate_OversizedPlacementIsClamped(t *testing.T) {
	cfg := Configuration{
		Size:        SizeXL,
		MaterialKey: "180",
		Front:       &Customization{Kind: KindLibraryDesign, Placement: rect(5000, 5000)},
	}

	result := Calculate(cfg, DefaultRates())

	nearlyEqual(t, "printFront", result.Breakdown.PrintFront, 286)
}

func TestCalculate_MissingPlacementKeepsOtherCharges(t *testing.T) {
	cfg := Configuration{
		Size:        SizeM,
		MaterialKey: "180",
		Front:       &Customization{Kind: KindAITextImage, Placement: rect(0, 100)},
		Back:        &Customization{Kind: KindLibraryDesign},
	}

	result := Calculate(cfg, DefaultRates())

	nearlyEqual(t, "printFront", result.Breakdown.PrintFront, 0)
	nearlyEqual(t, "printBack", result.Breakdown.PrintBack, 0)
	nearlyEqual(t, "flatAddon", result.Breakdown.FlatAddon, 50)
	nearlyEqual(t, "libraryAccess", result.Breakdown.LibraryAccess, 20)
	nearlyEqual(t, "unitPrice", result.UnitPrice, 469)
	if len(result.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %v", result.Errors)
	}
	if !strings.HasPrefix(result.Errors[0], "Front") || !strings.Contains(result.Errors[0], "AI_TEXT_IMAGE") {
		t.Fatalf("expected first error to name Front and kind, got %q", result.Errors[0])
	}
	if !strings.HasPrefix(result.Errors[1], "Back") {
		t.Fatalf("expected second error to name Back, got %q", result.Errors[1])
	}
}

func TestCalculate_InvalidMaterial(t *testing.T) {
	for _, key := range []string{"", "300"} {
		result := Calculate(Configuration{Size: SizeM, MaterialKey: key}, DefaultRates())

		nearlyEqual(t, "unitPrice", result.UnitPrice, 0)
		if !result.BaseInvalid {
			t.Fatalf("expected base marked invalid for %q", key)
		}
		if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "GSM") {
			t.Fatalf("expected one GSM error, got %v", result.Errors)
		}
		if got := result.Display(); len(got) != 1 || got["baseGSM"] != "Error" {
			t.Fatalf("unexpected display for invalid base: %v", got)
		}
	}
}

func TestCalculate_InvalidSizeIsNonFatal(t *testing.T) {
	cfg := Configuration{
		Size:        "XXL",
		MaterialKey: "180",
		Front:       &Customization{Kind: KindLibraryDesign, Placement: rect(100, 100)},
	}

	result := Calculate(cfg, DefaultRates())

	nearlyEqual(t, "unitPrice", result.UnitPrice, 419)
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "XXL") {
		t.Fatalf("expected size error, got %v", result.Errors)
	}
}

func TestCalculate_MissingPriceEntryIsNonFatal(t *testing.T) {
	rates := DefaultRates()
	rates.PrintPrices = map[Size]map[Bucket]float64{SizeM: {BucketQuarter: 60}}
	cfg := Configuration{
		Size:        SizeM,
		MaterialKey: "180",
		Front:       &Customization{Kind: KindLibraryDesign, Placement: rect(330, 488)},
	}

	result := Calculate(cfg, rates)

	nearlyEqual(t, "printFront", result.Breakdown.PrintFront, 0)
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "Full") {
		t.Fatalf("expected missing price error, got %v", result.Errors)
	}
}

func TestCalculate_MultiLibraryElements(t *testing.T) {
	cfg := Configuration{
		Size:        SizeL,
		MaterialKey: "180",
		Front: &Customization{
			Kind: KindMultiLibraryDesign,
			Elements: []Element{
				{Price: price(35)},
				{},
				{Price: price(0)},
				{Price: price(-5)},
			},
		},
	}

	result := Calculate(cfg, DefaultRates())

	nearlyEqual(t, "libraryAccess", result.Breakdown.LibraryAccess, 35+20+20+20)
	nearlyEqual(t, "printFront", result.Breakdown.PrintFront, 0)
	if len(result.Errors) != 0 {
		t.Fatalf("multi designs never need a placement, got %v", result.Errors)
	}
}

func TestCalculate_EmbroideryPerSide(t *testing.T) {
	cfg := Configuration{
		Size:        SizeS,
		MaterialKey: "240",
		Front:       &Customization{Kind: KindEmbroideryText, Text: "hola"},
		Back:        &Customization{Kind: KindEmbroideryDesign},
	}

	result := Calculate(cfg, DefaultRates())

	nearlyEqual(t, "embroideryFront", result.Breakdown.EmbroideryFront, 80)
	nearlyEqual(t, "embroideryBack", result.Breakdown.EmbroideryBack, 50)
	nearlyEqual(t, "unitPrice", result.UnitPrice, 599+80+50)
}

func TestCalculate_OtherKindIsFree(t *testing.T) {
	cfg := Configuration{
		Size:        SizeM,
		MaterialKey: "180",
		Front:       &Customization{Kind: ParseKind("sticker"), Placement: rect(330, 488)},
	}

	result := Calculate(cfg, DefaultRates())

	nearlyEqual(t, "unitPrice", result.UnitPrice, 399)
	if len(result.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", result.Errors)
	}
}

func TestCalculate_UnitPriceIsSumOfBreakdown(t *testing.T) {
	kinds := []Kind{KindOther, KindAITextImage, KindUploadedImage, KindAIDrawImage, KindLibraryDesign, KindMultiLibraryDesign, KindEmbroideryText, KindEmbroideryDesign}
	rates := DefaultRates()

	for _, size := range Sizes {
		for _, front := range kinds {
			for _, back := range kinds {
				cfg := Configuration{
					Size:        size,
					MaterialKey: "180",
					Front:       &Customization{Kind: front, Placement: rect(120, 300), Elements: []Element{{}, {Price: price(12.5)}}},
					Back:        &Customization{Kind: back, Placement: rect(310, 40)},
				}
				result := Calculate(cfg, rates)
				nearlyEqual(t, "unitPrice", result.UnitPrice, round2(result.Breakdown.Sum()))
				if result.Breakdown.FlatAddon > rates.FlatAddon {
					t.Fatalf("flat addon charged twice for %v/%v", front, back)
				}
			}
		}
	}
}

func TestCalculate_IsIdempotentAndDoesNotMutate(t *testing.T) {
	cfg := Configuration{
		Size:        SizeM,
		MaterialKey: "180",
		Front:       &Customization{Kind: KindAITextImage, Placement: &Rect{X: 10, Y: 20, Width: 100, Height: 0}},
		Back:        &Customization{Kind: KindMultiLibraryDesign, Elements: []Element{{Price: price(-1)}}},
	}
	before, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}

	first := Calculate(cfg, DefaultRates())
	second := Calculate(cfg, DefaultRates())

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("results differ: %+v vs %+v", first, second)
	}
	after, _ := json.Marshal(cfg)
	if string(before) != string(after) {
		t.Fatalf("configuration mutated: %s -> %s", before, after)
	}
}

func TestResultDisplayFormatsTwoDecimals(t *testing.T) {
	cfg := Configuration{
		Size:        SizeL,
		MaterialKey: "180",
		Front:       &Customization{Kind: KindLibraryDesign, Placement: rect(330, 488)},
	}

	got := Calculate(cfg, DefaultRates()).Display()

	if got["baseGSM"] != "399.00" || got["printFront"] != "262.50" || got["printBack"] != "0.00" {
		t.Fatalf("unexpected display: %v", got)
	}
}

func TestConfigurationDecodesWireTags(t *testing.T) {
	raw := `{
		"size": "M",
		"thickness": "180",
		"frontCustomization": {"type": "library_design", "position": {"x": 1, "y": 2, "width": 330, "height": 488}},
		"backCustomization": {"type": "multi_library_design", "elements": [{"price": 20, "position": {"width": 10, "height": 10}}]}
	}`

	var cfg Configuration
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		t.Fatalf("decode configuration: %v", err)
	}

	if cfg.Front.Kind != KindLibraryDesign || cfg.Back.Kind != KindMultiLibraryDesign {
		t.Fatalf("unexpected kinds: %v %v", cfg.Front.Kind, cfg.Back.Kind)
	}
	nearlyEqual(t, "unitPrice", Calculate(cfg, DefaultRates()).UnitPrice, 399+20+240+20)
}
