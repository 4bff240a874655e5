package terrain

func FloorDiv(a, b int) int {
	// b > 0
	q := a / b
	if a%b < 0 {
		q--
	}
	return q
}

func Mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func Hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	return mix64(uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9))
}

func Hash3(seed int64, x, y, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	uz := uint64(uint32(int32(z)))
	return mix64(uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xc2b2ae3d27d4eb4f) ^ (uz * 0xbf58476d1ce4e5b9))
}

// InCluster reports whether (x,z) lies within radius of a cluster centre.
// One centre may be placed per grid cell, with probability probPermille.
func InCluster(seed int64, x, z, grid, radius int, probPermille uint64) bool {
	if grid <= 0 || radius <= 0 || probPermille == 0 {
		return false
	}
	gx := FloorDiv(x, grid)
	gz := FloorDiv(z, grid)
	r2 := radius * radius
	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			cx, cz, ok := clusterCentre(seed, gx+dx, gz+dz, grid, probPermille)
			if !ok {
				continue
			}
			ddx, ddz := x-cx, z-cz
			if ddx*ddx+ddz*ddz <= r2 {
				return true
			}
		}
	}
	return false
}

func clusterCentre(seed int64, gx, gz, grid int, probPermille uint64) (int, int, bool) {
	h := Hash2(seed, gx, gz)
	if h%1000 >= probPermille {
		return 0, 0, false
	}
	ox := int((h >> 10) % uint64(grid))
	oz := int((h >> 20) % uint64(grid))
	return gx*grid + ox, gz*grid + oz, true
}
