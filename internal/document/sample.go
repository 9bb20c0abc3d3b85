package document

import "github.com/momentum/momentum/internal/geom"

// NewSampleDocument returns a small scene used by the playground and the
// render CLI: a filled rectangle, an ellipse, a dashed line with an
// accessible hitbox, and a triangle.
func NewSampleDocument() *Document {
	doc := New()

	blue := RGBA(0.29, 0.56, 0.89, 1)
	dark := RGBA(0.10, 0.12, 0.16, 1)
	coral := RGBA(0.91, 0.30, 0.24, 1)
	gold := RGBA(0.95, 0.77, 0.06, 1)

	doc.CreateEntity(NewTransform(120, 100), Style{
		Fill:        &blue,
		Stroke:      &dark,
		StrokeWidth: 2,
		Opacity:     1,
		Cap:         CapButt,
		Join:        JoinMiter,
	}, Rectangle{W: 200, H: 140})

	doc.CreateEntity(NewTransform(480, 170), Style{
		Fill:        &coral,
		StrokeWidth: 0,
		Opacity:     0.9,
	}, Ellipse{RX: 90, RY: 60})

	doc.CreateEntityWithHitbox(NewTransform(120, 320), Style{
		Stroke:      &dark,
		StrokeWidth: 3,
		Opacity:     1,
		Cap:         CapRound,
		Join:        JoinRound,
		Dash:        []float64{12, 6},
	}, Line{X2: 440, Y2: 0}, AccessibleRect(0, 0, 440, 0, 24))

	doc.CreateEntity(NewTransform(640, 300), Style{
		Fill:        &gold,
		Stroke:      &dark,
		StrokeWidth: 2,
		Opacity:     1,
		Join:        JoinBevel,
	}, Polygon{Points: []geom.Point{{X: 0, Y: 0}, {X: 80, Y: 120}, {X: -80, Y: 120}}})

	return doc
}
