package spectrogram

const (
	// MinDB and MaxDB bound the magnitude histogram.
	MinDB = -160.0
	MaxDB = 40.0
	// BinDB is the histogram resolution.
	BinDB = 0.5

	histogramBins = int((MaxDB - MinDB) / BinDB)

	// MinApertureSpread keeps auto gain from stretching noise over the
	// full intensity range.
	MinApertureSpread = 10.0
)

// Histogram counts magnitudes in BinDB-wide bins over [MinDB, MaxDB).
// Values outside the range land in the first or last bin.
type Histogram struct {
	bins  [histogramBins]uint32
	total uint64
}

// Add counts one magnitude.
func (h *Histogram) Add(db float32) {
	i := int((float64(db) - MinDB) / BinDB)
	i = min(max(i, 0), histogramBins-1)
	h.bins[i]++
	h.total++
}

// Merge adds the counts of o.
func (h *Histogram) Merge(o *Histogram) {
	for i, n := range o.bins {
		h.bins[i] += n
	}
	h.total += o.total
}

// Total returns the number of values counted.
func (h *Histogram) Total() uint64 { return h.total }

// Percentile returns the upper edge of the bin holding the p-th percentile
// (0 < p <= 100). An empty histogram returns MinDB.
func (h *Histogram) Percentile(p float64) float64 {
	if h.total == 0 {
		return MinDB
	}
	want := uint64(p / 100 * float64(h.total))
	want = max(want, 1)
	var seen uint64
	for i, n := range h.bins {
		seen += uint64(n)
		if seen >= want {
			return MinDB + float64(i+1)*BinDB
		}
	}
	return MaxDB
}

// Aperture derives the displayed dB range from the 1st and 100th
// percentiles, widened downwards to at least MinApertureSpread.
func (h *Histogram) Aperture() (from, to float64) {
	from, to = h.Percentile(1), h.Percentile(100)
	if to-from < MinApertureSpread {
		from = to - MinApertureSpread
	}
	return from, to
}
