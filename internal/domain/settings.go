package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidSettings is returned when photo settings cannot be parsed
var ErrInvalidSettings = errors.New("invalid photo settings")

// Output size presets
const (
	SizePassport = "passport" // 40x50mm at 300dpi
	SizeSquare   = "300x300"
	SizeCustom   = "custom"
)

// Pixel dimensions of the fixed presets
const (
	PassportWidth  = 472
	PassportHeight = 591
	SquareSide     = 300
	MaxCustomSide  = 4000
)

// Named background colours offered by the client
const (
	BackgroundWhite     = "#ffffff"
	BackgroundLightBlue = "#ADD8E6"
	BackgroundBlue      = "#007bff"
	BackgroundGrey      = "#D3D3D3"
	BackgroundOffWhite  = "#f8f9fa"
)

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Outfit is a clothing preset the model is asked to dress the subject in
type Outfit string

const (
	OutfitSuitBlack          Outfit = "black formal suit and tie"
	OutfitSuitNavy           Outfit = "navy blue formal suit and tie"
	OutfitSuitGrey           Outfit = "grey formal suit and tie"
	OutfitWhiteShirt         Outfit = "formal white button-down shirt"
	OutfitBlueShirt          Outfit = "formal light blue button-down shirt"
	OutfitCheckeredShirt     Outfit = "formal checkered button-down shirt"
	OutfitPoloShirt          Outfit = "navy blue polo shirt"
	OutfitPanjabi            Outfit = "white traditional bengali panjabi"
	OutfitBlackPanjabi       Outfit = "black traditional bengali panjabi"
	OutfitJubba              Outfit = "white islamic thobe"
	OutfitSherwani           Outfit = "formal traditional sherwani"
	OutfitSchoolShirtWhite   Outfit = "white school uniform shirt"
	OutfitSaree              Outfit = "formal saree"
	OutfitSalwarKameez       Outfit = "formal salwar kameez"
	OutfitWomenBlazer        Outfit = "black formal blazer for women"
	OutfitWomenWhiteShirt    Outfit = "white formal shirt for women"
	OutfitHijab              Outfit = "black hijab with modest dress"
	OutfitAbaya              Outfit = "black abaya"
	OutfitKurti              Outfit = "simple elegant kurti"
	OutfitSchoolUniformWhite Outfit = "white school uniform salwar kameez"
	OutfitSchoolUniformGreen Outfit = "bottle green school uniform salwar kameez"
	OutfitSchoolUniformBlue  Outfit = "blue school uniform salwar kameez"
)

// Outfits lists every preset in display order
var Outfits = []Outfit{
	OutfitSuitBlack, OutfitSuitNavy, OutfitSuitGrey, OutfitWhiteShirt, OutfitBlueShirt,
	OutfitCheckeredShirt, OutfitPoloShirt, OutfitPanjabi, OutfitBlackPanjabi, OutfitJubba,
	OutfitSherwani, OutfitSchoolShirtWhite, OutfitSaree, OutfitSalwarKameez, OutfitWomenBlazer,
	OutfitWomenWhiteShirt, OutfitHijab, OutfitAbaya, OutfitKurti, OutfitSchoolUniformWhite,
	OutfitSchoolUniformGreen, OutfitSchoolUniformBlue,
}

// Wire values of the two non-preset dress choices
const (
	DressOriginal = "original"
	DressCustom   = "custom"
)

// Clothing is one of OriginalClothing, OutfitClothing or CustomClothing
type Clothing interface {
	isClothing()
}

// OriginalClothing keeps whatever the subject is wearing
type OriginalClothing struct{}

// OutfitClothing swaps clothing for a preset outfit
type OutfitClothing struct {
	Outfit Outfit
}

// CustomClothing swaps clothing for a free-text description
type CustomClothing struct {
	Description string
}

func (OriginalClothing) isClothing() {}
func (OutfitClothing) isClothing()   {}
func (CustomClothing) isClothing()   {}

// Retouch is an optional adjustment with an intensity in 0..100
type Retouch struct {
	Enabled   bool
	Intensity int
}

// OutputSize is the final pixel size of a generated photo
type OutputSize struct {
	Preset string
	Width  int
	Height int
}

// PhotoSettings is the validated form of SettingsInput
type PhotoSettings struct {
	Background  string
	Clothing    Clothing
	Smoothing   Retouch
	Lighting    Retouch
	Brightening Retouch
	Size        OutputSize
}

// Summary is the short description stored with gallery entries
func (s PhotoSettings) Summary() string {
	return s.Size.Preset + ", " + s.Background
}

// SettingsInput is the flat form submitted by clients
type SettingsInput struct {
	BgColor                string `json:"bgColor"`
	Dress                  string `json:"dress"`
	CustomDressDescription string `json:"customDressDescription"`
	SmoothFace             bool   `json:"smoothFace"`
	SmoothFaceIntensity    int    `json:"smoothFaceIntensity"`
	EnhanceLighting        bool   `json:"enhanceLighting"`
	LightingIntensity      int    `json:"lightingIntensity"`
	BrightenFace           bool   `json:"brightenFace"`
	BrightenFaceIntensity  int    `json:"brightenFaceIntensity"`
	SizePreset             string `json:"sizePreset"`
	CustomWidth            int    `json:"customWidth"`
	CustomHeight           int    `json:"customHeight"`
}

// Parse validates the input and maps every field onto its typed variant
func (in SettingsInput) Parse() (PhotoSettings, error) {
	var s PhotoSettings

	bg := strings.TrimSpace(in.BgColor)
	if bg == "" {
		bg = BackgroundWhite
	}
	if !hexColor.MatchString(bg) {
		return s, fmt.Errorf("%w: background %q is not a hex colour", ErrInvalidSettings, bg)
	}
	s.Background = bg

	clothing, err := parseClothing(in.Dress, in.CustomDressDescription)
	if err != nil {
		return s, err
	}
	s.Clothing = clothing

	if s.Smoothing, err = parseRetouch("smoothFaceIntensity", in.SmoothFace, in.SmoothFaceIntensity); err != nil {
		return s, err
	}
	if s.Lighting, err = parseRetouch("lightingIntensity", in.EnhanceLighting, in.LightingIntensity); err != nil {
		return s, err
	}
	if s.Brightening, err = parseRetouch("brightenFaceIntensity", in.BrightenFace, in.BrightenFaceIntensity); err != nil {
		return s, err
	}

	size, err := parseSize(in.SizePreset, in.CustomWidth, in.CustomHeight)
	if err != nil {
		return s, err
	}
	s.Size = size
	return s, nil
}

func parseClothing(dress, custom string) (Clothing, error) {
	dress = strings.TrimSpace(dress)
	switch dress {
	case "", DressOriginal:
		return OriginalClothing{}, nil
	case DressCustom:
		desc := strings.TrimSpace(custom)
		if desc == "" {
			return nil, fmt.Errorf("%w: custom dress needs a description", ErrInvalidSettings)
		}
		return CustomClothing{Description: desc}, nil
	}
	for _, o := range Outfits {
		if string(o) == dress {
			return OutfitClothing{Outfit: o}, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown dress %q", ErrInvalidSettings, dress)
}

// parseRetouch treats a positive intensity as switching the adjustment on.
// An enabled adjustment without an intensity defaults to 50.
func parseRetouch(field string, enabled bool, intensity int) (Retouch, error) {
	if intensity < 0 || intensity > 100 {
		return Retouch{}, fmt.Errorf("%w: %s must be between 0 and 100", ErrInvalidSettings, field)
	}
	if !enabled && intensity == 0 {
		return Retouch{}, nil
	}
	if intensity == 0 {
		intensity = 50
	}
	return Retouch{Enabled: true, Intensity: intensity}, nil
}

func parseSize(preset string, w, h int) (OutputSize, error) {
	switch strings.TrimSpace(preset) {
	case "", SizePassport:
		return OutputSize{Preset: SizePassport, Width: PassportWidth, Height: PassportHeight}, nil
	case SizeSquare:
		return OutputSize{Preset: SizeSquare, Width: SquareSide, Height: SquareSide}, nil
	case SizeCustom:
		if w < 1 || h < 1 || w > MaxCustomSide || h > MaxCustomSide {
			return OutputSize{}, fmt.Errorf("%w: custom size must be within 1..%d pixels", ErrInvalidSettings, MaxCustomSide)
		}
		return OutputSize{Preset: SizeCustom, Width: w, Height: h}, nil
	}
	return OutputSize{}, fmt.Errorf("%w: unknown size preset %q", ErrInvalidSettings, preset)
}
