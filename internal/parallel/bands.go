package parallel

// Band is a half-open range of image rows [Y0, Y1).
type Band struct {
	Y0, Y1 int
}

// Height returns the number of rows in the band.
func (b Band) Height() int {
	return b.Y1 - b.Y0
}

// SplitRows splits height rows into bands of at most size rows. The last
// band may be shorter. A size below 1 is treated as 1.
func SplitRows(height, size int) []Band {
	if height <= 0 {
		return nil
	}
	size = max(size, 1)
	bands := make([]Band, 0, (height+size-1)/size)
	for y := 0; y < height; y += size {
		bands = append(bands, Band{Y0: y, Y1: min(y+size, height)})
	}
	return bands
}
