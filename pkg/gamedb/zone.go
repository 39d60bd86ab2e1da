package gamedb

// Zone is a named polygonal region. Containment is tested on the X/Z plane
// and bounded by Floor and Ceiling on Y (a zero Ceiling means unbounded).
type Zone struct {
	Name    string
	Points  []Vec3
	Floor   float64
	Ceiling float64
}

// Contains reports whether pos lies inside the zone.
func (z *Zone) Contains(pos Vec3) bool {
	if len(z.Points) < 3 {
		return false
	}
	if z.Ceiling != 0 && (pos.Y < z.Floor || pos.Y > z.Ceiling) {
		return false
	}
	inside := false
	n := len(z.Points)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := z.Points[i], z.Points[j]
		if (pi.Z > pos.Z) != (pj.Z > pos.Z) &&
			pos.X < (pj.X-pi.X)*(pos.Z-pi.Z)/(pj.Z-pi.Z)+pi.X {
			inside = !inside
		}
	}
	return inside
}
