package alert

import (
	"fmt"
	"math"
	"strings"
)

// PromotionAlert describes one promoted training run.
type PromotionAlert struct {
	Instrument string
	RunID      string
	Reason     string
	Loss       float64
	Demoted    string
}

// String formats the alert as one report line.
func (a PromotionAlert) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: promoted %s (%s, loss=", a.Instrument, a.RunID, a.Reason)
	if math.IsNaN(a.Loss) {
		b.WriteString("n/a")
	} else {
		fmt.Fprintf(&b, "%.6f", a.Loss)
	}
	b.WriteString(")")
	if a.Demoted != "" {
		fmt.Fprintf(&b, ", replaced %s", a.Demoted)
	}
	return b.String()
}
