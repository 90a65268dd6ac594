package stylize

import "fmt"

// Groups maps the semantic regions the grading stages understand to the
// classifier class ids that feed them. Ids are opaque configuration; the
// pipeline never interprets them beyond mask lookup.
type Groups struct {
	Sky        []int
	Vegetation []int
	Foreground []int
}

// ApplyRegionGrades runs the region passes in their fixed order: sky, then
// vegetation, then foreground. Each pass mutates the buffer seen by the
// next. Class ids without a mask in the bank are skipped.
func ApplyRegionGrades(buf *Tensor, bank *MaskBank, groups Groups) error {
	if bank.Width != buf.Width || bank.Height != buf.Height {
		return fmt.Errorf("mask bank is %dx%d, buffer is %dx%d",
			bank.Width, bank.Height, buf.Width, buf.Height)
	}

	applySkyGrade(buf, bank, groups.Sky)
	applyVegetationGrade(buf, bank, groups.Vegetation)
	applyForegroundGrade(buf, bank, groups.Foreground)
	return nil
}

// applySkyGrade pulls red out of sky regions and pushes blue toward
// saturation, weighted by mask occupancy.
func applySkyGrade(buf *Tensor, bank *MaskBank, classes []int) {
	red := buf.Plane(0)
	blue := buf.Plane(2)

	for _, class := range classes {
		mask, ok := bank.Mask(class)
		if !ok {
			continue
		}
		for i, m := range mask.Data {
			red[i] *= 1 - m*0.3
			if b := blue[i] * (1 + m*0.5); b < 1 {
				blue[i] = b
			} else {
				blue[i] = 1
			}
		}
	}
}

// applyVegetationGrade lifts green and adds a slight red component so
// foliage drifts toward yellow-green.
func applyVegetationGrade(buf *Tensor, bank *MaskBank, classes []int) {
	red := buf.Plane(0)
	green := buf.Plane(1)

	for _, class := range classes {
		mask, ok := bank.Mask(class)
		if !ok {
			continue
		}
		for i, m := range mask.Data {
			if g := green[i] * (1 + m*0.3); g < 1 {
				green[i] = g
			} else {
				green[i] = 1
			}
			if r := red[i] * (1 + m*0.1); r < 1 {
				red[i] = r
			} else {
				red[i] = 1
			}
		}
	}
}

// applyForegroundGrade raises contrast inside subject regions, blending the
// stretched value back in proportionally to mask occupancy.
func applyForegroundGrade(buf *Tensor, bank *MaskBank, classes []int) {
	for _, class := range classes {
		mask, ok := bank.Mask(class)
		if !ok {
			continue
		}
		for c := 0; c < 3; c++ {
			plane := buf.Plane(c)
			for i, m := range mask.Data {
				v := plane[i]
				stretched := clamp01((v-0.5)*1.3 + 0.5)
				plane[i] = (1-m)*v + m*stretched
			}
		}
	}
}
