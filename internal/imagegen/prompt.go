package imagegen

import (
	"fmt"
	"strings"

	"passport_studio/internal/domain"
)

var negativeConstraints = []string{
	"DO NOT add any text, code, overlay, numbers, or watermarks on the image.",
	"DO NOT change the person's identity or facial features.",
	"DO NOT distort the face.",
	"Output MUST be a clean photo only.",
}

// clothingClause panics on an unknown Clothing variant so a new variant cannot
// slip through without its own instruction
func clothingClause(c domain.Clothing) string {
	switch v := c.(type) {
	case domain.OriginalClothing:
		return "Keep original clothing."
	case domain.OutfitClothing:
		return fmt.Sprintf("Change clothing to: %s. Ensure the clothing fits naturally and looks professional.", v.Outfit)
	case domain.CustomClothing:
		return fmt.Sprintf("Change clothing to: %s. Ensure the clothing fits naturally and looks professional.", v.Description)
	default:
		panic(fmt.Sprintf("imagegen: unhandled clothing %T", c))
	}
}

func smoothingClause(r domain.Retouch) string {
	if !r.Enabled {
		return "Keep skin texture natural."
	}
	return fmt.Sprintf("Apply subtle skin smoothing (%d%% intensity) to reduce noise.", r.Intensity)
}

func lightingClause(r domain.Retouch) string {
	if !r.Enabled {
		return "Keep original lighting."
	}
	return fmt.Sprintf("Balance the lighting for a studio look (%d%% intensity).", r.Intensity)
}

func brighteningClause(r domain.Retouch) string {
	if !r.Enabled {
		return ""
	}
	return fmt.Sprintf("Slightly brighten the face (%d%% intensity) to improve visibility, but keep it natural.", r.Intensity)
}

// BuildInstruction maps settings onto the numbered instruction list sent with
// the photo. Each setting contributes exactly one clause; a disabled
// brightening adds none.
func BuildInstruction(s domain.PhotoSettings) string {
	clauses := []string{
		"Background: Change background to a solid " + s.Background + " color.",
		"Clothing: " + clothingClause(s.Clothing),
		"Face: " + smoothingClause(s.Smoothing),
		"Lighting: " + lightingClause(s.Lighting),
	}
	if b := brighteningClause(s.Brightening); b != "" {
		clauses = append(clauses, "Brightness: "+b)
	}

	var sb strings.Builder
	sb.WriteString("Transform this image into a professional passport photo.\n\nSTRICT INSTRUCTIONS:\n")
	for i, c := range clauses {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, c)
	}
	sb.WriteString("\nNEGATIVE CONSTRAINTS (CRITICAL):\n")
	for _, c := range negativeConstraints {
		sb.WriteString("- " + c + "\n")
	}
	return sb.String()
}

const faceInstruction = `Analyze this passport photo candidate.
1. Detect the main face box [ymin, xmin, ymax, xmax] (0-1000 scale).
2. Estimate head tilt roll angle in degrees to make eyes level.
Return JSON: { "rollAngle": number, "faceBox": [ymin, xmin, ymax, xmax] }`
