package steps

import (
	"fmt"
	"math"
	"strings"
)

// The textual artifacts the product ships are Spanish; these generators are
// the fallback when the engine returns a tagged output without text.

type costBand struct {
	label  string
	perMin int // MXN per linear meter
	perMax int
}

var costBands = map[string]costBand{
	"economica": {label: "Económica", perMin: 8000, perMax: 12000},
	"media":     {label: "Media", perMin: 14000, perMax: 22000},
	"premium":   {label: "Premium", perMin: 26000, perMax: 45000},
}

// moduleDistribution splits a counter run into standard 60cm modules:
// roughly half base cabinets, a third wall cabinets, the rest tall units.
func moduleDistribution(linearMeters float64) (base, wall, tall int) {
	if linearMeters <= 0 {
		return 0, 0, 0
	}
	total := int(math.Floor(linearMeters / 0.6))
	if total < 1 {
		total = 1
	}
	base = (total + 1) / 2
	wall = total / 3
	tall = total - base - wall
	if tall < 0 {
		tall = 0
	}
	return base, wall, tall
}

// SpecificationText renders the written spec for a layout when the engine
// sends the tag without a body.
func SpecificationText(linearMeters float64, shape string, style string) string {
	base, wall, tall := moduleDistribution(linearMeters)
	shapeLabel := shapeLabelES(shape)
	styleLabel := strings.TrimSpace(style)
	if styleLabel == "" {
		styleLabel = "moderna"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Especificación de cocina %s, distribución %s\n\n", styleLabel, shapeLabel)
	fmt.Fprintf(&b, "Metros lineales de mobiliario: %.1f m\n", linearMeters)
	fmt.Fprintf(&b, "Módulos estándar de 60 cm:\n")
	fmt.Fprintf(&b, "  - Módulos bajos: %d\n", base)
	fmt.Fprintf(&b, "  - Módulos altos: %d\n", wall)
	if tall > 0 {
		fmt.Fprintf(&b, "  - Torres/alacenas: %d\n", tall)
	}
	b.WriteString("\nConsideraciones:\n")
	b.WriteString("  - Cubierta con profundidad de 65 cm y zoclo de 10 cm.\n")
	b.WriteString("  - Triángulo de trabajo: estufa, tarja y refrigerador a menos de 2.7 m entre sí.\n")
	if shapeLabelES(shape) == "en isla" {
		b.WriteString("  - La isla requiere un pasillo libre mínimo de 1.0 m por lado.\n")
	}
	return b.String()
}

// CostEstimateText renders the MXN estimate for a layout. Unknown styles fall
// back to the middle band.
func CostEstimateText(linearMeters float64, style string) string {
	band, ok := costBands[normalizeStyle(style)]
	if !ok {
		band = costBands["media"]
	}
	low := float64(band.perMin) * linearMeters
	high := float64(band.perMax) * linearMeters

	var b strings.Builder
	fmt.Fprintf(&b, "Estimación de costo (gama %s)\n\n", band.label)
	fmt.Fprintf(&b, "Metros lineales: %.1f m\n", linearMeters)
	fmt.Fprintf(&b, "Rango estimado: $%s - $%s MXN\n", formatMXN(low), formatMXN(high))
	b.WriteString("\nIncluye mobiliario, cubierta e instalación básica. ")
	b.WriteString("No incluye electrodomésticos ni obra civil.\n")
	return b.String()
}

// ConversationTitle is the auto-title applied after the first design.
func ConversationTitle(style string, shape string, linearMeters float64) string {
	styleLabel := strings.TrimSpace(style)
	if styleLabel == "" {
		styleLabel = "moderna"
	}
	return fmt.Sprintf("Cocina %s %s - %.1fm", styleLabel, shapeLabelES(shape), linearMeters)
}

func shapeLabelES(shape string) string {
	switch strings.ToLower(strings.TrimSpace(shape)) {
	case "l", "en l", "l-shape":
		return "en L"
	case "u", "en u", "u-shape":
		return "en U"
	case "isla", "island":
		return "en isla"
	default:
		return "lineal"
	}
}

func normalizeStyle(style string) string {
	s := strings.ToLower(strings.TrimSpace(style))
	s = strings.NewReplacer("ó", "o", "é", "e", "í", "i", "á", "a", "ú", "u").Replace(s)
	switch {
	case strings.Contains(s, "econom"), strings.Contains(s, "basic"):
		return "economica"
	case strings.Contains(s, "premium"), strings.Contains(s, "lujo"), strings.Contains(s, "alta"):
		return "premium"
	default:
		return "media"
	}
}

func formatMXN(v float64) string {
	n := int64(math.Round(v))
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	return strings.Join(parts, ",")
}
