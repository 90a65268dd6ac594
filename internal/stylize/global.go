package stylize

const (
	globalContrast = 1.2
	pastelWeight   = 0.15
)

// pastelTint is the fixed blue-leaning cast blended over the whole frame,
// RGB order.
var pastelTint = [3]float32{0.02, 0.02, 0.05}

// ApplyGlobalGrade stretches contrast uniformly and blends in the pastel
// tint. Both steps keep every channel inside [0,1]: the stretch clamps and
// the blend is a convex combination.
func ApplyGlobalGrade(buf *Tensor) {
	for c := 0; c < 3; c++ {
		plane := buf.Plane(c)
		tint := pastelTint[c] * pastelWeight
		for i, v := range plane {
			v = clamp01((v-0.5)*globalContrast + 0.5)
			plane[i] = v*(1-pastelWeight) + tint
		}
	}
}
