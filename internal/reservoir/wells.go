package reservoir

import "fmt"

// WellKind distinguishes injection from production.
type WellKind int

const (
	Injector WellKind = iota
	Producer
)

func (k WellKind) String() string {
	if k == Injector {
		return "injector"
	}
	return "producer"
}

// Well is a rate-controlled source or sink completed in a single cell.
// Rate is total volumetric rate in m^3/s, always positive; the kind
// decides the sign applied during assembly. Injectors inject water.
type Well struct {
	Name string
	Kind WellKind
	Cell int
	Rate float64
}

func (w Well) Validate(cells int) error {
	if w.Cell < 0 || w.Cell >= cells {
		return fmt.Errorf("reservoir: well %q completed in cell %d, grid has %d cells", w.Name, w.Cell, cells)
	}
	if w.Rate <= 0 {
		return fmt.Errorf("reservoir: well %q rate %g not positive", w.Name, w.Rate)
	}
	return nil
}

// signedRate is positive for injection and negative for production.
func (w Well) signedRate() float64 {
	if w.Kind == Producer {
		return -w.Rate
	}
	return w.Rate
}
